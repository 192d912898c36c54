package storage

import (
	"bufio"
	"fmt"
	"os"
	"os/user"
	"strings"
	"sync"
)

const qemuConfPath = "/etc/libvirt/qemu.conf"

var (
	qemuUID  string
	qemuGID  string
	qemuOnce sync.Once
	qemuErr  error
)

// GetQEMUUserGroup returns the UID and GID the QEMU process runs as,
// for pool and volume permissions. Resolution order:
//  1. user/group configured in /etc/libvirt/qemu.conf
//  2. common account names (qemu, libvirt-qemu)
//  3. UID/GID 107, the Fedora/RHEL default
//
// The result is cached after the first call.
func GetQEMUUserGroup() (uid, gid string, err error) {
	qemuOnce.Do(func() {
		username, groupname := getQEMUConfiguredUser(qemuConfPath)

		if username != "" {
			u, err := user.Lookup(username)
			if err == nil {
				qemuUID = u.Uid
				if groupname != "" {
					g, err := user.LookupGroup(groupname)
					if err == nil {
						qemuGID = g.Gid
					} else {
						qemuGID = u.Gid
					}
				} else {
					qemuGID = u.Gid
				}
				return
			}
		}

		for _, username := range []string{"qemu", "libvirt-qemu"} {
			u, err := user.Lookup(username)
			if err == nil {
				qemuUID = u.Uid
				qemuGID = u.Gid
				return
			}
		}

		qemuUID = "107"
		qemuGID = "107"
		qemuErr = fmt.Errorf("could not determine QEMU user/group, using fallback UID/GID 107")
	})

	return qemuUID, qemuGID, qemuErr
}

// getQEMUConfiguredUser reads a qemu.conf and extracts the configured
// user and group names. Returns empty strings if the file doesn't
// exist or the settings aren't present.
func getQEMUConfiguredUser(confPath string) (username, groupname string) {
	file, err := os.Open(confPath)
	if err != nil {
		return "", ""
	}
	defer func() { _ = file.Close() }()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if strings.HasPrefix(line, "user") {
			parts := strings.SplitN(line, "=", 2)
			if len(parts) == 2 {
				username = strings.Trim(strings.TrimSpace(parts[1]), "\"'")
			}
		}

		if strings.HasPrefix(line, "group") {
			parts := strings.SplitN(line, "=", 2)
			if len(parts) == 2 {
				groupname = strings.Trim(strings.TrimSpace(parts[1]), "\"'")
			}
		}
	}

	return username, groupname
}
