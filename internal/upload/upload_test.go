package upload

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/hyperjump/docscan/internal/config"
	"github.com/pkg/sftp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/crypto/ssh"
)

func writeLocal(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

// memDialer serves every connection from the same in-memory filesystem.
func memDialer(handlers sftp.Handlers, dials *int) sftpDialer {
	return func(context.Context) (*sftp.Client, func() error, error) {
		*dials++
		serverConn, clientConn := net.Pipe()
		server := sftp.NewRequestServer(serverConn, handlers)
		go func() { _ = server.Serve() }()
		client, err := sftp.NewClientPipe(clientConn, clientConn)
		if err != nil {
			_ = server.Close()
			return nil, nil, err
		}
		return client, func() error {
			err := client.Close()
			_ = server.Close()
			return err
		}, nil
	}
}

func readRemote(t *testing.T, dial sftpDialer, remote string) string {
	t.Helper()
	client, closeAll, err := dial(context.Background())
	require.NoError(t, err)
	defer closeAll()
	f, err := client.Open(remote)
	require.NoError(t, err)
	defer f.Close()
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	return string(data)
}

func TestSFTPUploader_Upload(t *testing.T) {
	handlers := sftp.InMemHandler()
	var dials int
	u := &SFTPUploader{remoteDir: "/upload/matched", dial: memDialer(handlers, &dials), logger: zap.NewNop()}

	local := writeLocal(t, "payroll.xlsx", "salary data")
	require.NoError(t, u.Upload(context.Background(), local))
	assert.Equal(t, "/upload/matched/payroll.xlsx", u.RemotePath(local))

	second := writeLocal(t, "memo.txt", "confidential")
	require.NoError(t, u.Upload(context.Background(), second))
	// one connection per file
	assert.Equal(t, 2, dials)

	assert.Equal(t, "salary data", readRemote(t, memDialer(handlers, &dials), "/upload/matched/payroll.xlsx"))
	assert.Equal(t, "confidential", readRemote(t, memDialer(handlers, &dials), "/upload/matched/memo.txt"))
}

func TestSFTPUploader_failuresAreTransferErrors(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	refused := errors.New("connection refused")
	u := &SFTPUploader{
		remoteDir: ".",
		dial: func(context.Context) (*sftp.Client, func() error, error) {
			return nil, nil, refused
		},
		logger: zap.New(core),
	}
	local := writeLocal(t, "a.txt", "x")
	err := u.Upload(context.Background(), local)

	var terr *TransferError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, local, terr.Path)
	assert.ErrorIs(t, err, refused)
	assert.Equal(t, 1, logs.Len())

	err = u.Upload(context.Background(), filepath.Join(t.TempDir(), "missing.txt"))
	assert.True(t, errors.As(err, &terr))
}

func writeKey(t *testing.T) string {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	block, err := ssh.MarshalPrivateKey(priv, "docscan test")
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "id_ed25519")
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(block), 0600))
	return path
}

func TestSSHClientConfig(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	cfg := config.SFTPConfig{Host: "files.example.com", Port: 22, Username: "scan", Password: "pw", PrivateKeyPath: writeKey(t)}
	clientCfg, err := sshClientConfig(cfg, zap.New(core))
	require.NoError(t, err)
	assert.Equal(t, "scan", clientCfg.User)
	assert.Len(t, clientCfg.Auth, 2)
	// no known_hosts configured
	assert.Equal(t, 1, logs.Len())

	knownHosts := filepath.Join(t.TempDir(), "known_hosts")
	require.NoError(t, os.WriteFile(knownHosts, nil, 0600))
	cfg.KnownHostsPath = knownHosts
	_, err = sshClientConfig(cfg, zap.New(core))
	require.NoError(t, err)
	assert.Equal(t, 1, logs.Len())

	cfg.KnownHostsPath = filepath.Join(t.TempDir(), "absent")
	_, err = sshClientConfig(cfg, zap.NewNop())
	assert.Error(t, err)

	cfg.KnownHostsPath = ""
	cfg.PrivateKeyPath = writeLocal(t, "bad_key", "not a key")
	_, err = sshClientConfig(cfg, zap.NewNop())
	assert.Error(t, err)
}

type fakeS3 struct {
	inputs []*s3.PutObjectInput
	bodies []string
	err    error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.inputs = append(f.inputs, in)
	f.bodies = append(f.bodies, string(body))
	return &s3.PutObjectOutput{}, nil
}

func TestS3Uploader_Upload(t *testing.T) {
	api := &fakeS3{}
	u := newS3Uploader(api, config.S3Config{Bucket: "evidence", Prefix: "scans/2026/"}, zap.NewNop())
	local := writeLocal(t, "contract.docx", "terms")

	require.NoError(t, u.Upload(context.Background(), local))
	require.Len(t, api.inputs, 1)
	assert.Equal(t, "evidence", *api.inputs[0].Bucket)
	assert.Equal(t, "scans/2026/contract.docx", *api.inputs[0].Key)
	assert.Equal(t, int64(5), *api.inputs[0].ContentLength)
	assert.Equal(t, "terms", api.bodies[0])
}

func TestS3Uploader_failure(t *testing.T) {
	denied := errors.New("access denied")
	u := newS3Uploader(&fakeS3{err: denied}, config.S3Config{Bucket: "evidence"}, zap.NewNop())
	err := u.Upload(context.Background(), writeLocal(t, "a.txt", "x"))
	var terr *TransferError
	require.True(t, errors.As(err, &terr))
	assert.ErrorIs(t, err, denied)
}

func TestNew_unknownBackend(t *testing.T) {
	_, err := New(context.Background(), config.UploadConfig{Backend: "ftp"}, zap.NewNop())
	assert.Error(t, err)
}

func TestNew_sftp(t *testing.T) {
	u, err := New(context.Background(), config.UploadConfig{
		Backend: config.BackendSFTP,
		SFTP:    config.SFTPConfig{Host: "127.0.0.1", Port: 2222, Username: "scan", Password: "pw", RemoteDir: "/in"},
	}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &SFTPUploader{}, u)
}
