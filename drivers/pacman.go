package drivers

// NewPacman returns the Arch Linux driver. Docker ships in the official
// repositories, so no extra repository is configured.
func NewPacman() Driver {
	return &table{
		name:        "pacman",
		description: "Arch Linux and derivatives (pacman)",
		ids:         []string{"arch", "manjaro", "endeavouros", "garuda"},
		backend: Backend{
			Binary:  "pacman",
			Refresh: "pacman -Sy --noconfirm",
			Install: "pacman -S --needed --noconfirm",
			Remove:  "pacman -Rns --noconfirm",
			Query:   "pacman -Qi %s >/dev/null 2>&1",
		},
		packages: map[string]string{
			"build-essential": "base-devel",
			"fd-find":         "fd",
			"python3":         "python",
			"python3-pip":     "python-pip",
			"docker-ce":       "docker",
			"containerd.io":   "containerd",
			"openssh-server":  "openssh",
			"cron":            "cronie",
		},
		skipped: skipSet("docker-ce-cli", "software-properties-common", "apt-transport-https"),
		repos:   map[RepoKind]RepoConfig{},
		services: map[string]string{
			"ssh":  "sshd",
			"cron": "cronie",
		},
	}
}
