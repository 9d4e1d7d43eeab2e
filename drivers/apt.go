package drivers

const aptDockerSource = `deb [signed-by=/etc/apt/keyrings/docker.asc] https://download.docker.com/linux/{{ID}} {{CODENAME}} stable
`

// NewApt returns the Debian/Ubuntu driver.
func NewApt() Driver {
	return &table{
		name:        "apt",
		description: "Debian, Ubuntu and derivatives (apt-get/dpkg)",
		ids:         []string{"debian", "ubuntu", "linuxmint", "pop", "raspbian"},
		backend: Backend{
			Binary:  "apt-get",
			Refresh: "DEBIAN_FRONTEND=noninteractive apt-get update -y",
			Install: "DEBIAN_FRONTEND=noninteractive apt-get install -y --no-install-recommends",
			Remove:  "DEBIAN_FRONTEND=noninteractive apt-get remove -y",
			Query:   "dpkg-query -W -f='${Status}' %s 2>/dev/null | grep -q 'install ok installed'",
		},
		packages: map[string]string{},
		skipped:  skipSet(),
		repos: map[RepoKind]RepoConfig{
			RepoDocker: {
				Name:    "docker",
				Path:    "/etc/apt/sources.list.d/docker.list",
				Content: aptDockerSource,
				KeyURL:  "https://download.docker.com/linux/{{ID}}/gpg",
				KeyPath: "/etc/apt/keyrings/docker.asc",
			},
		},
		services: map[string]string{
			"sshd": "ssh",
		},
	}
}
