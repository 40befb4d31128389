package dump_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/km-arc/go-laravel-webprofiler/framework/dump"
)

type user struct {
	Name  string
	Roles []string
}

type sink struct{ got []*dump.Data }

func (s *sink) Dump(d *dump.Data) { s.got = append(s.got, d) }

func TestCloner_Clone(t *testing.T) {
	u := &user{Name: "ada", Roles: []string{"admin"}}
	d := dump.NewCloner(0).Clone(u)

	assert.Equal(t, "*dump_test.user", d.Type)
	assert.Contains(t, d.Value, `Name: (string) (len=3) "ada"`)
	assert.NotContains(t, d.Value, "0x", "pointer addresses are hidden")

	u.Name = "grace"
	assert.Contains(t, d.Value, "ada", "clone is a snapshot")
}

func TestCliDumper(t *testing.T) {
	var buf bytes.Buffer
	d := &dump.Data{Value: "(int) 1\n", File: "main.go", Line: 3}
	require.NoError(t, dump.NewCliDumper(&buf).Dump(d))
	assert.Equal(t, "main.go:3:\n(int) 1\n", buf.String())
}

func TestListener_Configure(t *testing.T) {
	s := &sink{}
	prev := dump.SetHandler(nil)
	t.Cleanup(func() { dump.SetHandler(prev) })

	dump.NewListener(dump.NewCloner(2), s).Configure()
	dump.Dump(42, "x")

	require.Len(t, s.got, 2)
	assert.Equal(t, "int", s.got[0].Type)
	assert.Equal(t, "string", s.got[1].Type)
	assert.True(t, strings.HasSuffix(s.got[0].File, "dump_test.go"))
	assert.NotZero(t, s.got[0].Line)
}
