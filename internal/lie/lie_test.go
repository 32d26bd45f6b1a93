package lie

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/joeycumines/mendax/internal/tale"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func build(t *testing.T, b *Builder) tale.Tale {
	t.Helper()
	got, err := b.Build()
	require.NoError(t, err)
	return got
}

func TestBuilder_Basic(t *testing.T) {
	t.Parallel()

	b := New(true)
	require.NoError(t, b.Run("true"))
	require.NoError(t, b.Run("echo hi", "hi"))
	require.NoError(t, b.Run("ls", "a", "b"))
	require.NoError(t, b.Show("plain"))
	require.NoError(t, b.System("date"))
	require.NoError(t, b.SystemAs("ls", "dir"))
	require.NoError(t, b.Sleep(250))
	require.NoError(t, b.Enter("yes"))
	require.NoError(t, b.Clear())
	require.NoError(t, b.Stop())

	require.Equal(t, tale.Tale{
		tale.Run{Cmd: "true", Result: []string{}},
		tale.Run{Cmd: "echo hi", Result: []string{"hi"}},
		tale.Run{Cmd: "ls", Result: []string{"a", "b"}},
		tale.Show{Text: "plain"},
		tale.System{Cmd: "date"},
		tale.System{ApparentCmd: tale.Ptr("ls"), Cmd: "dir"},
		tale.Sleep{Duration: 250 * time.Millisecond},
		tale.Enter{Msg: "yes"},
		tale.Clear{},
		tale.Stop{},
	}, build(t, b))
}

func TestBuilder_Cd(t *testing.T) {
	t.Parallel()

	b := New(false)
	require.NoError(t, b.Cd("/tmp"))

	require.Equal(t, tale.Tale{
		tale.Run{Cmd: "cd /tmp", Result: []string{}},
		tale.Look{Cwd: tale.Ptr("/tmp")},
	}, build(t, b))
}

func TestBuilder_SystemForbidden(t *testing.T) {
	t.Parallel()

	b := New(false)
	require.NoError(t, b.Show("before"))

	require.ErrorIs(t, b.System("rm -rf /"), ErrSystemForbidden)
	require.ErrorIs(t, b.SystemAs("ls", "rm -rf /"), ErrSystemForbidden)
	require.Equal(t, 1, b.Len())

	err := b.Screen(func(s *Builder) error {
		return s.System("whoami")
	})
	require.ErrorIs(t, err, ErrSystemForbidden)
	require.Equal(t, 1, b.Len())
}

func TestBuilder_NestedScreens(t *testing.T) {
	t.Parallel()

	b := New(false)
	require.NoError(t, b.Show("outer"))

	var inner error
	err := b.Screen(func(s *Builder) error {
		require.True(t, s.InScreen())
		require.NoError(t, s.Show("inside"))
		inner = s.ScreenAs("vim", func(*Builder) error {
			t.Fatal("nested body must not run")
			return nil
		})
		return nil
	})
	require.NoError(t, err)
	require.ErrorIs(t, inner, ErrNestedScreens)

	require.Equal(t, tale.Tale{
		tale.Show{Text: "outer"},
		tale.Screen{Tale: tale.Tale{tale.Show{Text: "inside"}}},
	}, build(t, b))
}

func TestBuilder_NestedScreenErrorLeavesOuterUnchanged(t *testing.T) {
	t.Parallel()

	b := New(false)
	require.NoError(t, b.Show("outer"))
	before := build(t, b)

	err := b.Screen(func(s *Builder) error {
		return s.Screen(func(*Builder) error { return nil })
	})
	require.ErrorIs(t, err, ErrNestedScreens)
	require.Equal(t, before, build(t, b))
}

func TestBuilder_ScreenRejectsNestedTale(t *testing.T) {
	t.Parallel()

	b := New(false)
	err := b.Screen(func(s *Builder) error {
		s.tale = append(s.tale, tale.Screen{Tale: tale.Tale{tale.Show{Text: "deep"}}})
		return nil
	})
	require.ErrorIs(t, err, ErrNestedScreens)
	require.Empty(t, build(t, b))
}

func TestBuilder_DuplicateTags(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		name string
		fn   func(b *Builder) error
	}{
		{"root then root", func(b *Builder) error {
			require.NoError(t, b.Tag("x"))
			return b.Tag("x")
		}},
		{"root then screen", func(b *Builder) error {
			require.NoError(t, b.Tag("x"))
			return b.Screen(func(s *Builder) error { return s.Tag("x") })
		}},
		{"screen then root", func(b *Builder) error {
			require.NoError(t, b.Screen(func(s *Builder) error { return s.Tag("x") }))
			return b.Tag("x")
		}},
		{"screen then sibling screen", func(b *Builder) error {
			require.NoError(t, b.Screen(func(s *Builder) error { return s.Tag("x") }))
			return b.ScreenAs("less", func(s *Builder) error { return s.Tag("x") })
		}},
		{"within one screen", func(b *Builder) error {
			return b.Screen(func(s *Builder) error {
				require.NoError(t, s.Tag("x"))
				return s.Tag("x")
			})
		}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.fn(New(false))
			var dup *DuplicateTagError
			require.ErrorAs(t, err, &dup)
			assert.Equal(t, "x", dup.Name)
			assert.Equal(t, "tag 'x' defined multiple times", err.Error())
		})
	}
}

func TestBuilder_InvalidTags(t *testing.T) {
	t.Parallel()

	b := New(false)
	for _, name := range []string{"", "?", " x", "x\n"} {
		require.ErrorIs(t, b.Tag(name), ErrInvalidTagName, "name %q", name)
	}
	require.Zero(t, b.Len())
	require.NoError(t, b.Tag("intro"))
}

func TestBuilder_Look(t *testing.T) {
	t.Parallel()

	b := New(false)
	require.NoError(t, b.Look(map[string]any{
		"speed":        int64(0),
		"title":        "demo",
		"cwd":          "/srv",
		"host":         "prod",
		"user":         "root",
		"final_prompt": false,
	}))
	require.NoError(t, b.Look(map[string]any{"speed": 0.1}))
	require.NoError(t, b.Look(map[string]any{}))

	require.Equal(t, tale.Tale{
		tale.Look{
			Speed:       tale.Ptr(0.0),
			Title:       tale.Ptr("demo"),
			Cwd:         tale.Ptr("/srv"),
			Host:        tale.Ptr("prod"),
			User:        tale.Ptr("root"),
			FinalPrompt: tale.Ptr(false),
		},
		tale.Look{Speed: tale.Ptr(0.1)},
		tale.Look{},
	}, build(t, b))
}

func TestBuilder_LookErrors(t *testing.T) {
	t.Parallel()

	b := New(false)

	err := b.Look(map[string]any{"cwd": "/", "colour": "red"})
	var unknown *UnknownFieldError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "colour", unknown.Field)
	assert.Equal(t, []string{"cwd", "final_prompt", "host", "speed", "title", "user"}, unknown.Expected)
	assert.Equal(t, `unknown field "colour", expected one of: cwd, final_prompt, host, speed, title, user`, err.Error())

	var invalid *InvalidFieldError
	require.ErrorAs(t, b.Look(map[string]any{"speed": "fast"}), &invalid)
	assert.Equal(t, "speed", invalid.Field)
	require.ErrorAs(t, b.Look(map[string]any{"final_prompt": "yes"}), &invalid)
	require.ErrorAs(t, b.Look(map[string]any{"title": 3}), &invalid)
	require.ErrorIs(t, b.Look(map[string]any{"speed": -1.0}), ErrInvalidArgument)

	require.Zero(t, b.Len())
}

func TestBuilder_InUse(t *testing.T) {
	t.Parallel()

	b := New(false)
	err := b.Screen(func(s *Builder) error {
		require.ErrorIs(t, b.Show("from the outer builder"), ErrBuilderInUse)
		_, err := b.Build()
		require.ErrorIs(t, err, ErrBuilderInUse)
		return s.Show("inner")
	})
	require.NoError(t, err)

	require.Equal(t, tale.Tale{
		tale.Screen{Tale: tale.Tale{tale.Show{Text: "inner"}}},
	}, build(t, b))
}

func TestBuilder_ScreenClosed(t *testing.T) {
	t.Parallel()

	b := New(false)
	var kept *Builder
	require.NoError(t, b.Screen(func(s *Builder) error {
		kept = s
		return nil
	}))
	require.ErrorIs(t, kept.Show("late"), ErrScreenClosed)
}

func TestBuilder_ScreenBodyError(t *testing.T) {
	t.Parallel()

	b := New(false)
	boom := errors.New("boom")
	err := b.ScreenAs("top", func(s *Builder) error {
		require.NoError(t, s.Show("partial"))
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.Zero(t, b.Len())
}

func TestBuilder_Limits(t *testing.T) {
	t.Parallel()

	b := New(false, WithLimits(DefaultLimits()))

	var limit *LimitError
	require.ErrorAs(t, b.Run("yes", make([]string, 1001)...), &limit)
	assert.Equal(t, 1000, limit.Max)
	require.ErrorAs(t, b.Show(strings.Repeat("y", 15001)), &limit)

	big := make(map[string]any, 1001)
	for i := range 1001 {
		big[strings.Repeat("k", i+1)] = i
	}
	require.ErrorAs(t, b.Look(big), &limit)

	require.NoError(t, b.Run("yes", make([]string, 1000)...))
	require.Equal(t, 1, b.Len())

	unlimited := New(false)
	require.NoError(t, unlimited.Show(strings.Repeat("y", 15001)))
}

func TestBuilder_InvalidSleep(t *testing.T) {
	t.Parallel()
	require.ErrorIs(t, New(false).Sleep(-1), ErrInvalidArgument)
	require.ErrorIs(t, New(false).Sleep(1e16), ErrInvalidArgument)
	require.ErrorIs(t, New(false).Sleep(math.MaxInt64), ErrInvalidArgument)

	b := New(false)
	require.NoError(t, b.Sleep(maxSleepMillis))
	assert.Equal(t, tale.Tale{tale.Sleep{Duration: time.Duration(maxSleepMillis) * time.Millisecond}}, build(t, b))
}

func TestBuilder_Deterministic(t *testing.T) {
	t.Parallel()

	record := func() tale.Tale {
		b := New(true)
		require.NoError(t, b.Look(map[string]any{"title": "t", "cwd": "~", "speed": 0.02}))
		require.NoError(t, b.Tag("start"))
		require.NoError(t, b.Run("echo hi", "hi"))
		require.NoError(t, b.ScreenAs("top", func(s *Builder) error {
			require.NoError(t, s.Tag("top"))
			return s.System("uptime")
		}))
		return build(t, b)
	}

	require.Equal(t, record(), record())
}
