// Package sshkey finds or generates the SSH keypair injected into
// machines and opens interactive shells on them.
package sshkey
