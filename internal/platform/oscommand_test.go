package platform

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func newTestOSCommand() *OSCommand {
	return NewOSCommand(logrus.NewEntry(logrus.New()))
}

func TestOSCommandRunWithTimeoutSuccess(t *testing.T) {
	c := newTestOSCommand()
	stdout, _, err := c.RunWithTimeout(context.Background(), 2*time.Second, "echo", "-n", "123")
	assert.NoError(t, err)
	assert.Equal(t, "123", stdout)
}

func TestOSCommandRunWithTimeoutExpires(t *testing.T) {
	c := newTestOSCommand()
	_, _, err := c.RunWithTimeout(context.Background(), 50*time.Millisecond, "sleep", "5")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestOSCommandQuoteLinux(t *testing.T) {
	c := newTestOSCommand()
	c.os.os = "linux"
	assert.Equal(t, "\"hello \\`test\\`\"", c.Quote("hello `test`"))
}

func TestOSCommandQuoteWindows(t *testing.T) {
	c := newTestOSCommand()
	c.os.os = "windows"
	assert.Equal(t, `\"hello "'"'"test"'"'" 'test2'\"`, c.Quote(`hello "test" 'test2'`))
}

func TestOSCommandFileType(t *testing.T) {
	dir := t.TempDir()
	c := newTestOSCommand()

	filePath := dir + "/file"
	assert.NoError(t, os.WriteFile(filePath, []byte("x"), 0o644))
	assert.Equal(t, "file", c.FileType(filePath))

	dirPath := dir + "/subdir"
	assert.NoError(t, os.Mkdir(dirPath, 0o755))
	assert.Equal(t, "directory", c.FileType(dirPath))

	assert.Equal(t, "other", c.FileType(dir+"/missing"))
}

func TestOSCommandAtomicWriteFile(t *testing.T) {
	dir := t.TempDir()
	c := newTestOSCommand()
	target := dir + "/out.txt"

	assert.NoError(t, c.AtomicWriteFile(target, []byte("content"), 0o600))

	data, err := os.ReadFile(target)
	assert.NoError(t, err)
	assert.Equal(t, "content", string(data))
}

func TestOSCommandCreateTempFile(t *testing.T) {
	c := newTestOSCommand()
	path, err := c.CreateTempFile("filename", "content")
	assert.NoError(t, err)
	defer os.Remove(path)

	content, err := os.ReadFile(path)
	assert.NoError(t, err)
	assert.Equal(t, "content", string(content))
}
