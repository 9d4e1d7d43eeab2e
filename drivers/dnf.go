package drivers

const dnfDockerRepo = `[docker-ce-stable]
name=Docker CE Stable
baseurl=https://download.docker.com/linux/{{ID}}/$releasever/$basearch/stable
enabled=1
gpgcheck=1
gpgkey=https://download.docker.com/linux/{{ID}}/gpg
`

// NewDnf returns the Fedora/RHEL driver.
func NewDnf() Driver {
	return &table{
		name:        "dnf",
		description: "Fedora, RHEL and derivatives (dnf/rpm)",
		ids:         []string{"fedora", "rhel", "centos", "rocky", "almalinux"},
		backend: Backend{
			Binary:  "dnf",
			Refresh: "dnf makecache -y",
			Install: "dnf install -y",
			Remove:  "dnf remove -y",
			Query:   "rpm -q %s >/dev/null 2>&1",
		},
		packages: map[string]string{
			"build-essential": "@development-tools",
			"cron":            "cronie",
		},
		skipped: skipSet("software-properties-common", "apt-transport-https"),
		repos: map[RepoKind]RepoConfig{
			RepoDocker: {
				Name:    "docker",
				Path:    "/etc/yum.repos.d/docker-ce.repo",
				Content: dnfDockerRepo,
			},
		},
		services: map[string]string{
			"ssh":  "sshd",
			"cron": "crond",
		},
	}
}
