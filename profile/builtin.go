// Copyright (c) 2020 Siemens AG
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of
// this software and associated documentation files (the "Software"), to deal in
// the Software without restriction, including without limitation the rights to
// use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies of
// the Software, and to permit persons to whom the Software is furnished to do so,
// subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY, FITNESS
// FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE AUTHORS OR
// COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
// IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
// CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
//
// Author(s): Jonas Plum

package profile

import (
	"time"
)

const sec = time.Second

// Builtin returns the built-in module catalog. Modules without a command
// need a registered collection strategy.
func Builtin() *Catalog {
	c := &Catalog{Modules: builtinModules()}
	for i, def := range c.Modules {
		c.Modules[i] = def.Normalized()
	}
	return c
}

func builtinModules() []ModuleDefinition {
	return []ModuleDefinition{
		// windows
		{ID: "win_memory", Name: "Processes", Description: "Process information and memory artifacts", OS: OSWindows, Priority: "critical", ArtifactType: "memory", Groups: []string{"volatile"}, Estimate: 30 * sec, Command: []string{"tasklist", "/v"}},
		{ID: "win_network", Name: "Network state", Description: "Network connections, DNS cache and ARP table", OS: OSWindows, Priority: "critical", ArtifactType: "network", Groups: []string{"volatile"}, Estimate: 15 * sec, Command: []string{"netstat", "-ano"}},
		{ID: "win_registry", Name: "Registry hives", Description: "Registry hives (SAM, SYSTEM, SOFTWARE, SECURITY, NTUSER)", OS: OSWindows, Priority: "high", ArtifactType: "registry", RequiresAdmin: true, Estimate: 120 * sec},
		{ID: "win_autoruns", Name: "Autoruns", Description: "Autorun entries", OS: OSWindows, Priority: "high", ArtifactType: "persistence", DependsOn: []string{"win_registry"}, Groups: []string{"persistence"}, Estimate: 45 * sec},
		{ID: "win_services", Name: "Services", Description: "Services information", OS: OSWindows, Priority: "normal", ArtifactType: "persistence", Groups: []string{"persistence"}, Estimate: 20 * sec, Command: []string{"sc", "query", "state=", "all"}},
		{ID: "win_schtasks", Name: "Scheduled tasks", Description: "Scheduled tasks", OS: OSWindows, Priority: "normal", ArtifactType: "persistence", Groups: []string{"persistence"}, Estimate: 20 * sec, Command: []string{"schtasks", "/query", "/fo", "LIST", "/v"}},
		{ID: "win_eventlogs", Name: "Event logs", Description: "Event logs (Security, System, Application)", OS: OSWindows, Priority: "normal", ArtifactType: "logs", RequiresAdmin: true, Estimate: 120 * sec},
		{ID: "win_prefetch", Name: "Prefetch", Description: "Prefetch files (execution history)", OS: OSWindows, Priority: "normal", ArtifactType: "filesystem", RequiresAdmin: true, Estimate: 30 * sec},
		{ID: "win_browser", Name: "Browser history", Description: "Browser history (Chrome, Firefox, Edge)", OS: OSWindows, Priority: "normal", ArtifactType: "filesystem", Estimate: 90 * sec},
		{ID: "win_mft", Name: "MFT", Description: "MFT and timeline artifacts (USN Journal)", OS: OSWindows, Priority: "low", ArtifactType: "filesystem", RequiresAdmin: true, Conflicts: []string{"win_user_files"}, Estimate: 300 * sec},
		{ID: "win_user_files", Name: "User files", Description: "User file metadata (Downloads, Desktop, Documents, Recent)", OS: OSWindows, Priority: "low", ArtifactType: "filesystem", Estimate: 120 * sec},
		{ID: "win_recycle", Name: "Recycle Bin", Description: "Recycle Bin contents", OS: OSWindows, Priority: "low", ArtifactType: "filesystem", Estimate: 60 * sec},
		{ID: "win_shimcache", Name: "ShimCache", Description: "ShimCache (AppCompatCache) execution artifacts", OS: OSWindows, Priority: "analysis", ArtifactType: "registry", DependsOn: []string{"win_registry"}, Estimate: 20 * sec},
		{ID: "win_amcache", Name: "AmCache", Description: "AmCache and BAM execution history", OS: OSWindows, Priority: "analysis", ArtifactType: "registry", DependsOn: []string{"win_registry"}, Estimate: 20 * sec},
		{ID: "win_jumplists", Name: "Jump Lists", Description: "Jump Lists (recent file access)", OS: OSWindows, Priority: "analysis", ArtifactType: "filesystem", Estimate: 30 * sec},
		{ID: "win_wmi", Name: "WMI persistence", Description: "WMI persistence mechanisms", OS: OSWindows, Priority: "low", ArtifactType: "persistence", Groups: []string{"persistence"}, RequiresAdmin: true, Estimate: 30 * sec},
		{ID: "win_usb", Name: "USB history", Description: "USB device connection history", OS: OSWindows, Priority: "analysis", ArtifactType: "registry", DependsOn: []string{"win_registry"}, Estimate: 15 * sec},
		{ID: "win_powershell", Name: "PowerShell history", Description: "PowerShell command history and logs", OS: OSWindows, Priority: "low", ArtifactType: "logs", Estimate: 30 * sec},

		// linux
		{ID: "lnx_sysinfo", Name: "System information", Description: "Kernel, hostname and uptime", OS: OSLinux, Priority: "critical", ArtifactType: "other", Estimate: 5 * sec, Command: []string{"uname", "-a"}},
		{ID: "lnx_netstat", Name: "Network connections", Description: "Open sockets and listening ports", OS: OSLinux, Priority: "critical", ArtifactType: "network", Groups: []string{"volatile"}, Estimate: 5 * sec, Command: []string{"ss", "-tunap"}},
		{ID: "lnx_memory", Name: "Processes", Description: "Process list", OS: OSLinux, Priority: "critical", ArtifactType: "memory", Groups: []string{"volatile"}, Estimate: 5 * sec, Command: []string{"ps", "auxww"}},
		{ID: "lnx_kernel", Name: "Kernel modules", Description: "Loaded kernel modules", OS: OSLinux, Priority: "high", ArtifactType: "other", Estimate: 2 * sec, Command: []string{"cat", "/proc/modules"}},
		{ID: "lnx_users", Name: "User accounts", Description: "User account database (passwd, group)", OS: OSLinux, Priority: "high", ArtifactType: "other", Estimate: 2 * sec, Command: []string{"cat", "/etc/passwd", "/etc/group"}},
		{ID: "lnx_shell_history", Name: "Shell history", Description: "Shell history (bash, zsh)", OS: OSLinux, Priority: "high", ArtifactType: "logs", DependsOn: []string{"lnx_users"}, Estimate: 10 * sec, Command: []string{"sh", "-c", "cat ~/.bash_history ~/.zsh_history 2>/dev/null || true"}},
		{ID: "lnx_ssh", Name: "SSH configuration", Description: "SSH configuration, authorized keys, known hosts", OS: OSLinux, Priority: "normal", ArtifactType: "persistence", DependsOn: []string{"lnx_users"}, Estimate: 5 * sec, Command: []string{"sh", "-c", "cat /etc/ssh/sshd_config ~/.ssh/authorized_keys ~/.ssh/known_hosts 2>/dev/null || true"}},
		{ID: "lnx_authlogs", Name: "Authentication logs", Description: "Authentication logs", OS: OSLinux, Priority: "normal", ArtifactType: "logs", RequiresAdmin: true, Conflicts: []string{"lnx_journal"}, Estimate: 20 * sec, Command: []string{"sh", "-c", "cat /var/log/auth.log /var/log/secure 2>/dev/null || true"}},
		{ID: "lnx_cron", Name: "Cron", Description: "Cron jobs and scheduled tasks", OS: OSLinux, Priority: "normal", ArtifactType: "persistence", Groups: []string{"persistence"}, Estimate: 5 * sec, Command: []string{"sh", "-c", "cat /etc/crontab; ls -la /etc/cron.* /var/spool/cron 2>/dev/null || true"}},
		{ID: "lnx_persistence", Name: "Persistence", Description: "Persistence mechanisms (cron, systemd)", OS: OSLinux, Priority: "normal", ArtifactType: "persistence", DependsOn: []string{"lnx_cron"}, Groups: []string{"persistence"}, Estimate: 15 * sec, Command: []string{"systemctl", "list-unit-files", "--no-pager"}},
		{ID: "lnx_browser", Name: "Browser history", Description: "Browser history (Firefox, Chrome, Chromium)", OS: OSLinux, Priority: "low", ArtifactType: "filesystem", Estimate: 30 * sec, Command: []string{"sh", "-c", "find ~/.mozilla ~/.config/google-chrome ~/.config/chromium -name 'places.sqlite' -o -name 'History' 2>/dev/null || true"}},
		{ID: "lnx_docker", Name: "Docker", Description: "Docker containers and images", OS: OSLinux, Priority: "low", ArtifactType: "other", Estimate: 20 * sec, Command: []string{"docker", "ps", "-a", "--no-trunc"}},
		{ID: "lnx_journal", Name: "systemd journal", Description: "systemd journal logs", OS: OSLinux, Priority: "low", ArtifactType: "logs", Estimate: 60 * sec, Command: []string{"journalctl", "--no-pager", "-n", "10000"}},
		{ID: "lnx_firewall", Name: "Firewall rules", Description: "Firewall rules (iptables, ufw, firewalld)", OS: OSLinux, Priority: "analysis", ArtifactType: "network", RequiresAdmin: true, Estimate: 5 * sec, Command: []string{"iptables-save"}},

		// macos
		{ID: "mac_sysinfo", Name: "System information", Description: "System information", OS: OSMacOS, Priority: "critical", ArtifactType: "other", Estimate: 10 * sec, Command: []string{"sw_vers"}},
		{ID: "mac_persistence", Name: "Persistence", Description: "Launch agents, daemons, login items", OS: OSMacOS, Priority: "high", ArtifactType: "persistence", Groups: []string{"persistence"}, Estimate: 30 * sec, Command: []string{"sh", "-c", "ls -la /Library/LaunchAgents /Library/LaunchDaemons ~/Library/LaunchAgents 2>/dev/null || true"}},
		{ID: "mac_users", Name: "User accounts", Description: "User account database", OS: OSMacOS, Priority: "high", ArtifactType: "other", Estimate: 5 * sec, Command: []string{"dscl", ".", "-list", "/Users"}},
		{ID: "mac_logs", Name: "Unified logs", Description: "Unified logs (errors, security, auth, network)", OS: OSMacOS, Priority: "normal", ArtifactType: "logs", RequiresAdmin: true, Estimate: 180 * sec, Command: []string{"log", "show", "--last", "1h", "--style", "syslog"}},
		{ID: "mac_browser", Name: "Browser history", Description: "Browser history (Safari, Chrome, Firefox)", OS: OSMacOS, Priority: "normal", ArtifactType: "filesystem", Estimate: 60 * sec},
		{ID: "mac_quarantine", Name: "Quarantine events", Description: "Quarantine database (download tracking)", OS: OSMacOS, Priority: "normal", ArtifactType: "filesystem", Estimate: 10 * sec},
		{ID: "mac_install", Name: "Install history", Description: "Installation history and package managers", OS: OSMacOS, Priority: "low", ArtifactType: "logs", Estimate: 10 * sec, Command: []string{"cat", "/Library/Receipts/InstallHistory.plist"}},
		{ID: "mac_fsevents", Name: "FSEvents", Description: "Filesystem events database (/.fseventsd)", OS: OSMacOS, Priority: "low", ArtifactType: "filesystem", RequiresAdmin: true, Estimate: 120 * sec},
		{ID: "mac_spotlight", Name: "Spotlight", Description: "Spotlight index", OS: OSMacOS, Priority: "analysis", ArtifactType: "filesystem", RequiresAdmin: true, Conflicts: []string{"mac_fsevents"}, Estimate: 180 * sec},
		{ID: "mac_keychain", Name: "Keychain metadata", Description: "Keychain metadata (certificates, identities)", OS: OSMacOS, Priority: "analysis", ArtifactType: "other", DependsOn: []string{"mac_users"}, Estimate: 20 * sec, Command: []string{"security", "list-keychains"}},
	}
}
