package upload

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"time"

	"github.com/hyperjump/docscan/internal/config"
	"github.com/pkg/sftp"
	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

const sftpDialTimeout = 30 * time.Second

// sftpDialer opens a session and returns the client plus a function releasing everything it opened.
type sftpDialer func(ctx context.Context) (*sftp.Client, func() error, error)

// SFTPUploader copies files into a remote directory over SFTP. A new connection is
// opened for each file and closed when the transfer ends.
type SFTPUploader struct {
	remoteDir string
	dial      sftpDialer
	logger    *zap.Logger
}

// NewSFTPUploader prepares SSH authentication and host-key checking for cfg. Nothing is
// dialed until the first Upload.
func NewSFTPUploader(cfg config.SFTPConfig, logger *zap.Logger) (*SFTPUploader, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	clientCfg, err := sshClientConfig(cfg, logger)
	if err != nil {
		return nil, err
	}
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	return &SFTPUploader{
		remoteDir: cfg.RemoteDir,
		dial:      sshDialer(addr, clientCfg),
		logger:    logger,
	}, nil
}

func sshClientConfig(cfg config.SFTPConfig, logger *zap.Logger) (*ssh.ClientConfig, error) {
	var auth []ssh.AuthMethod
	if cfg.PrivateKeyPath != "" {
		pem, err := os.ReadFile(cfg.PrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("read private key: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(pem)
		if err != nil {
			return nil, fmt.Errorf("parse private key: %w", err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if cfg.Password != "" {
		auth = append(auth, ssh.Password(cfg.Password))
	}

	hostKey := ssh.InsecureIgnoreHostKey()
	if cfg.KnownHostsPath != "" {
		cb, err := knownhosts.New(cfg.KnownHostsPath)
		if err != nil {
			return nil, fmt.Errorf("load known_hosts: %w", err)
		}
		hostKey = cb
	} else {
		logger.Warn("sftp host key verification disabled; set upload.sftp.known_hosts_path", zap.String("host", cfg.Host))
	}

	return &ssh.ClientConfig{
		User:            cfg.Username,
		Auth:            auth,
		HostKeyCallback: hostKey,
		Timeout:         sftpDialTimeout,
	}, nil
}

func sshDialer(addr string, clientCfg *ssh.ClientConfig) sftpDialer {
	return func(ctx context.Context) (*sftp.Client, func() error, error) {
		d := net.Dialer{Timeout: clientCfg.Timeout}
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, nil, fmt.Errorf("dial %s: %w", addr, err)
		}
		c, chans, reqs, err := ssh.NewClientConn(conn, addr, clientCfg)
		if err != nil {
			_ = conn.Close()
			return nil, nil, fmt.Errorf("ssh handshake: %w", err)
		}
		sshClient := ssh.NewClient(c, chans, reqs)
		client, err := sftp.NewClient(sshClient)
		if err != nil {
			_ = sshClient.Close()
			return nil, nil, fmt.Errorf("start sftp: %w", err)
		}
		closeAll := func() error {
			_ = client.Close()
			return sshClient.Close()
		}
		return client, closeAll, nil
	}
}

// RemotePath returns where localPath is written on the server.
func (u *SFTPUploader) RemotePath(localPath string) string {
	return path.Join(u.remoteDir, filepath.Base(localPath))
}

// Upload copies localPath to the remote directory under its base name.
func (u *SFTPUploader) Upload(ctx context.Context, localPath string) error {
	if err := u.upload(ctx, localPath); err != nil {
		u.logger.Error("sftp upload failed", zap.String("path", localPath), zap.Error(err))
		return &TransferError{Path: localPath, Err: err}
	}
	u.logger.Info("uploaded", zap.String("path", localPath), zap.String("remote", u.RemotePath(localPath)))
	return nil
}

func (u *SFTPUploader) upload(ctx context.Context, localPath string) error {
	src, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open local file: %w", err)
	}
	defer src.Close()

	client, closeAll, err := u.dial(ctx)
	if err != nil {
		return err
	}
	defer closeAll()

	if u.remoteDir != "" && u.remoteDir != "." {
		if err := client.MkdirAll(u.remoteDir); err != nil {
			return fmt.Errorf("create remote dir %s: %w", u.remoteDir, err)
		}
	}
	remote := u.RemotePath(localPath)
	dst, err := client.Create(remote)
	if err != nil {
		return fmt.Errorf("create %s: %w", remote, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return fmt.Errorf("write %s: %w", remote, err)
	}
	if err := dst.Close(); err != nil {
		return fmt.Errorf("close %s: %w", remote, err)
	}
	return nil
}
