package ssh

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/williamokano/dbb/pkg/storage"
)

// Settings holds the sftp specific options. The bucket is the remote base
// directory, the access key the user and the secret key the password.
type Settings struct {
	Endpoint      string // host or host:port, default port 22
	KeyPath       string // Optional: path to private key
	KeyPassphrase string // Optional
	KnownHosts    string // Optional: known_hosts file; host keys are not verified without it
	Timeout       time.Duration
}

type Backend struct {
	name       string
	sshClient  *ssh.Client
	sftpClient *sftp.Client
	remotePath string
}

func init() {
	storage.RegisterBackend("ssh", func(ctx context.Context, cfg storage.Config) (storage.ObjectStore, error) {
		return New(ctx, cfg)
	})
}

// ParseSettings extracts the ssh options
func ParseSettings(options map[string]interface{}) (*Settings, error) {
	s := &Settings{
		Endpoint:      storage.StringOption(options, "endpoint", ""),
		KeyPath:       storage.StringOption(options, "key_path", ""),
		KeyPassphrase: storage.StringOption(options, "key_passphrase", ""),
		KnownHosts:    storage.StringOption(options, "known_hosts", ""),
		Timeout:       30 * time.Second,
	}
	if s.Endpoint == "" {
		return nil, fmt.Errorf("%w: missing required option: endpoint", storage.ErrInvalidConfig)
	}
	if _, _, err := net.SplitHostPort(s.Endpoint); err != nil {
		s.Endpoint = net.JoinHostPort(s.Endpoint, "22")
	}
	return s, nil
}

// New connects over SSH and makes sure the remote directory exists
func New(ctx context.Context, cfg storage.Config) (*Backend, error) {
	settings, err := ParseSettings(cfg.Options)
	if err != nil {
		return nil, err
	}

	clientConfig, err := clientConfig(cfg, settings)
	if err != nil {
		return nil, storage.WrapError(cfg.Name(), "init", err)
	}

	dialer := net.Dialer{Timeout: settings.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", settings.Endpoint)
	if err != nil {
		return nil, storage.WrapError(cfg.Name(), "connect", fmt.Errorf("%w: %w", storage.ErrConnFailed, err))
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, settings.Endpoint, clientConfig)
	if err != nil {
		conn.Close()
		return nil, storage.WrapError(cfg.Name(), "handshake", fmt.Errorf("%w: %w", storage.ErrAuthFailed, err))
	}
	sshClient := ssh.NewClient(sshConn, chans, reqs)

	sftpClient, err := sftp.NewClient(sshClient)
	if err != nil {
		sshClient.Close()
		return nil, storage.WrapError(cfg.Name(), "sftp init", err)
	}

	if err := sftpClient.MkdirAll(cfg.Bucket); err != nil {
		sftpClient.Close()
		sshClient.Close()
		return nil, storage.WrapError(cfg.Name(), "mkdir", classify(err))
	}

	return &Backend{
		name:       cfg.Name(),
		sshClient:  sshClient,
		sftpClient: sftpClient,
		remotePath: cfg.Bucket,
	}, nil
}

func clientConfig(cfg storage.Config, settings *Settings) (*ssh.ClientConfig, error) {
	clientConfig := &ssh.ClientConfig{
		User:            cfg.AccessKey,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         settings.Timeout,
	}

	if settings.KnownHosts != "" {
		callback, err := knownhosts.New(settings.KnownHosts)
		if err != nil {
			return nil, fmt.Errorf("%w: known_hosts: %w", storage.ErrInvalidConfig, err)
		}
		clientConfig.HostKeyCallback = callback
	}

	if cfg.SecretKey != "" {
		clientConfig.Auth = append(clientConfig.Auth, ssh.Password(cfg.SecretKey))
	}

	if settings.KeyPath != "" {
		key, err := os.ReadFile(settings.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read SSH key: %w", err)
		}

		var signer ssh.Signer
		if settings.KeyPassphrase != "" {
			signer, err = ssh.ParsePrivateKeyWithPassphrase(key, []byte(settings.KeyPassphrase))
		} else {
			signer, err = ssh.ParsePrivateKey(key)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse SSH key: %w", err)
		}

		clientConfig.Auth = append(clientConfig.Auth, ssh.PublicKeys(signer))
	}

	if len(clientConfig.Auth) == 0 {
		return nil, fmt.Errorf("%w: neither password nor key_path set", storage.ErrInvalidConfig)
	}

	return clientConfig, nil
}

func (b *Backend) Name() string { return b.name }
func (b *Backend) Type() string { return "ssh" }

// Put uploads a file via SFTP, writing to a temporary name first
func (b *Backend) Put(ctx context.Context, sourcePath, key string, vis storage.Visibility) error {
	localFile, err := os.Open(sourcePath)
	if err != nil {
		return err
	}
	defer localFile.Close()

	remotePath := path.Join(b.remotePath, key)
	if err := b.sftpClient.MkdirAll(path.Dir(remotePath)); err != nil {
		return storage.WrapError(b.name, "mkdir", classify(err))
	}

	tmpPath := remotePath + ".part"
	remoteFile, err := b.sftpClient.Create(tmpPath)
	if err != nil {
		return storage.WrapError(b.name, "create", classify(err))
	}

	mode := os.FileMode(0600)
	if vis == storage.PublicRead {
		mode = 0644
	}
	if err := remoteFile.Chmod(mode); err != nil {
		remoteFile.Close()
		b.sftpClient.Remove(tmpPath)
		return storage.WrapError(b.name, "chmod", classify(err))
	}

	if _, err := io.Copy(remoteFile, &ctxReader{ctx: ctx, r: localFile}); err != nil {
		remoteFile.Close()
		b.sftpClient.Remove(tmpPath)
		return storage.WrapError(b.name, "upload", err)
	}
	if err := remoteFile.Close(); err != nil {
		b.sftpClient.Remove(tmpPath)
		return storage.WrapError(b.name, "upload", err)
	}

	if err := b.sftpClient.PosixRename(tmpPath, remotePath); err != nil {
		// plain SFTP rename refuses to overwrite; same-day reruns replace the object
		b.sftpClient.Remove(remotePath)
		if err := b.sftpClient.Rename(tmpPath, remotePath); err != nil {
			b.sftpClient.Remove(tmpPath)
			return storage.WrapError(b.name, "rename", classify(err))
		}
	}

	return nil
}

// Stat returns file metadata
func (b *Backend) Stat(ctx context.Context, key string) (*storage.ObjectInfo, error) {
	info, err := b.sftpClient.Stat(path.Join(b.remotePath, key))
	if err != nil {
		return nil, storage.WrapError(b.name, "stat", classify(err))
	}

	return &storage.ObjectInfo{
		Key:     key,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}

// Close releases resources
func (b *Backend) Close() error {
	if b.sftpClient != nil {
		b.sftpClient.Close()
	}
	if b.sshClient != nil {
		b.sshClient.Close()
	}
	return nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("%w: %w", storage.ErrNotFound, err)
	case errors.Is(err, os.ErrPermission):
		return fmt.Errorf("%w: %w", storage.ErrPermissionDenied, err)
	}
	return err
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
