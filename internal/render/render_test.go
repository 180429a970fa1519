package render

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/iammorganparry/clive/apps/sessions/internal/hierarchy"
	"github.com/iammorganparry/clive/apps/sessions/internal/models"
)

var codec = models.KeyCodec{Separator: `\`}

func sample() []*models.Session {
	web := models.NewSession(codec, "web%2001", `Sessions\Prod`)
	web.Hostname = "10.0.0.1"
	web.Username = "deploy"
	web.Protocol = "ssh"
	web.PortNumber = 22
	db := models.NewSession(codec, "db01", `Sessions\Prod\Data`)
	db.Hostname = "10.0.0.2"
	return []*models.Session{web, db, models.NewSession(codec, "loose", "")}
}

func TestTree(t *testing.T) {
	tr := hierarchy.Build(sample(), hierarchy.Options{RootName: "Sessions", Separator: `\`})
	out := Tree(tr)

	lines := strings.Split(out, "\n")
	assert.Equal(t, "Sessions", strings.TrimSpace(lines[0]))
	assert.Contains(t, out, "Prod")
	assert.Contains(t, out, "Data")
	assert.Contains(t, out, "web 01 deploy@10.0.0.1")
	assert.Contains(t, out, "db01 10.0.0.2")
	assert.Contains(t, out, "loose")

	// Nested nodes are indented further than their parents.
	indent := func(s string) int {
		for _, l := range lines {
			if strings.Contains(l, s) {
				return strings.Index(l, s)
			}
		}
		return -1
	}
	assert.Less(t, indent("Prod"), indent("Data"))
	assert.Less(t, indent("Data"), indent("db01"))
}

func TestSessionsTable(t *testing.T) {
	out := Sessions(sample())
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "web 01")
	assert.Contains(t, out, `Sessions\Prod\Data`)
	assert.Contains(t, out, "22")
}

func TestAttributes(t *testing.T) {
	s := sample()[0]
	out := Attributes(s, models.Attributes{
		models.AttrProtocol:   models.StringValue("ssh"),
		models.AttrPortNumber: models.DWordValue(22),
	})
	assert.Contains(t, out, "(web%2001)")
	assert.Contains(t, out, "dword")
	assert.Less(t, strings.Index(out, models.AttrPortNumber), strings.Index(out, models.AttrProtocol))
}

func TestEvent(t *testing.T) {
	assert.Contains(t, Event(models.Event{Persisted: 2, Pruned: []string{`Sessions\Old`}}), `2 record(s) written; pruned Sessions\Old`)
	assert.Contains(t, Event(models.Event{Reload: true}), "reload required")
	assert.Contains(t, Event(models.Event{}), "no changes written")
	assert.Contains(t, Error(errors.New("boom")), "error: boom")
}
