// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package sftpclient delivers generated report files to an SFTP drop.
package sftpclient

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

const dialTimeout = 20 * time.Second

// Config holds the connection settings for one drop.
type Config struct {
	Host      string
	Port      int
	User      string
	Password  string
	RemoteDir string
}

// UploadFiles connects to the drop once and uploads every local path under
// the configured remote directory, keeping each file's base name. The dial
// honors ctx cancellation.
func UploadFiles(ctx context.Context, cfg Config, localPaths []string, w io.Writer) error {
	if cfg.Host == "" || cfg.User == "" || cfg.Password == "" {
		return fmt.Errorf("sftp: host, user, and password are required")
	}
	if cfg.Port <= 0 {
		cfg.Port = 22
	}
	if cfg.RemoteDir == "" {
		cfg.RemoteDir = "/"
	}

	sshCfg := &ssh.ClientConfig{
		User: cfg.User,
		Auth: []ssh.AuthMethod{ssh.Password(cfg.Password)},
		// TODO: verify against known_hosts once the drop publishes a stable key.
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         dialTimeout,
	}

	sshClient, err := dial(ctx, fmt.Sprintf("%s:%d", cfg.Host, cfg.Port), sshCfg)
	if err != nil {
		return err
	}
	defer sshClient.Close()

	client, err := sftp.NewClient(sshClient)
	if err != nil {
		return fmt.Errorf("sftp: new client: %w", err)
	}
	defer client.Close()

	if err := client.MkdirAll(cfg.RemoteDir); err != nil {
		return fmt.Errorf("sftp: mkdir %s: %w", cfg.RemoteDir, err)
	}

	for _, localPath := range localPaths {
		remotePath := path.Join(cfg.RemoteDir, filepath.Base(localPath))
		if err := uploadOne(client, localPath, remotePath); err != nil {
			return err
		}
		fmt.Fprintf(w, "uploaded %s -> %s\n", localPath, remotePath)
	}
	return nil
}

// dial runs ssh.Dial in a goroutine so ctx cancellation can interrupt it.
func dial(ctx context.Context, addr string, cfg *ssh.ClientConfig) (*ssh.Client, error) {
	type dialResult struct {
		client *ssh.Client
		err    error
	}
	ch := make(chan dialResult, 1)
	go func() {
		c, err := ssh.Dial("tcp", addr, cfg)
		ch <- dialResult{client: c, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("sftp: dial canceled: %w", ctx.Err())
	case r := <-ch:
		if r.err != nil {
			return nil, fmt.Errorf("sftp: dial %s: %w", addr, r.err)
		}
		return r.client, nil
	}
}

func uploadOne(client *sftp.Client, localPath, remotePath string) error {
	src, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("sftp: open local file: %w", err)
	}
	defer src.Close()

	dst, err := client.Create(remotePath)
	if err != nil {
		return fmt.Errorf("sftp: create remote file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("sftp: upload %s: %w", localPath, err)
	}
	return nil
}
