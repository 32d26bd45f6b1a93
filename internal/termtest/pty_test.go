//go:build unix

package termtest

import (
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPTY_Open(t *testing.T) {
	p, err := Open()
	require.NoError(t, err)
	defer p.Close()

	require.NotNil(t, p.TTY())

	startLen := p.OutputLen()
	_, err = p.TTY().WriteString("hello \x1b[1mprogram\x1b[0m")
	require.NoError(t, err)
	assert.NoError(t, p.WaitForOutputSince("hello program", startLen, 2*time.Second))
	assert.Contains(t, p.Output(), "\x1b[1m")
}

func TestPTY_WaitForOutputSince(t *testing.T) {
	p, err := Open()
	require.NoError(t, err)
	defer p.Close()

	_, err = p.TTY().WriteString("first\r\n")
	require.NoError(t, err)
	require.NoError(t, p.WaitForOutputSince("first", 0, 2*time.Second))

	offset := p.OutputLen()
	_, err = p.TTY().WriteString("second\r\n")
	require.NoError(t, err)
	require.NoError(t, p.WaitForOutputSince("second", offset, 2*time.Second))

	err = p.WaitForOutputSince("first", offset, 50*time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found in new output")
}

func TestPTY_Keys(t *testing.T) {
	p, err := Open()
	require.NoError(t, err)
	defer p.Close()

	require.NoError(t, p.SendKeys("space"))
	require.NoError(t, p.Type("ab", time.Millisecond))
	require.NoError(t, p.SendKeys("enter"))

	// cooked mode: the line arrives once enter is pressed, with CR mapped to NL
	buf := make([]byte, 16)
	n, err := p.TTY().Read(buf)
	require.NoError(t, err)
	assert.Equal(t, " ab\n", string(buf[:n]))

	assert.EqualError(t, p.SendKeys("hyper-x"), "unknown key sequence: hyper-x")
}

func TestPTY_Closed(t *testing.T) {
	p, err := Open()
	require.NoError(t, err)
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())

	assert.ErrorIs(t, p.SendKeys("enter"), ErrClosed)
	assert.ErrorIs(t, p.Type("x", 0), ErrClosed)
}

func TestPTY_Start(t *testing.T) {
	t.Run("exit code", func(t *testing.T) {
		p, err := Start(exec.Command("sh", "-c", "echo $TERM; exit 3"))
		require.NoError(t, err)
		defer p.Close()

		require.NoError(t, p.WaitForOutputSince("xterm-256color", 0, 2*time.Second))
		code, err := p.Wait(5 * time.Second)
		require.NoError(t, err)
		assert.Equal(t, 3, code)
		assert.Nil(t, p.TTY())
	})

	t.Run("missing command", func(t *testing.T) {
		_, err := Start(exec.Command("/non/existent/command"))
		assert.Error(t, err)
	})

	t.Run("timeout", func(t *testing.T) {
		p, err := Start(exec.Command("sleep", "10"))
		require.NoError(t, err)
		defer p.Close()

		_, err = p.Wait(50 * time.Millisecond)
		assert.ErrorContains(t, err, "command timeout")
	})
}
