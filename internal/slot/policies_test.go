package slot

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type notification struct {
	name     string
	old, new string
}

func TestObservable_CallbackPerWrite(t *testing.T) {
	var got []notification
	s := newSlot("", "name", "init", Observable(func(name, old, new string) {
		got = append(got, notification{name, old, new})
	}))

	s.Write("A")
	s.Write("B")

	require.Len(t, got, 2)
	assert.Equal(t, notification{"name", "init", "A"}, got[0])
	assert.Equal(t, notification{"name", "A", "B"}, got[1])
	assert.Equal(t, "B", s.Read())
}

func TestObservable_CallbackSeesCommittedValue(t *testing.T) {
	var s *Slot[int]
	var seen int
	s = newSlot("", "temperature", 20, Observable(func(_ string, _, _ int) {
		seen = s.Read()
	}))

	s.Write(27)

	assert.Equal(t, 27, seen, "callback should observe the committed value")
}

func TestObservable_InitialValueDoesNotNotify(t *testing.T) {
	calls := 0
	newSlot("", "name", "init", Observable(func(string, string, string) { calls++ }))
	assert.Equal(t, 0, calls)
}

func TestVetoable_AgeScenario(t *testing.T) {
	s := newSlot("", "age", 0, Vetoable(func(_ string, _, v int) bool { return v >= 0 }))

	c := s.Write(25)
	assert.True(t, c.Accepted)
	assert.Equal(t, 25, s.Read())

	c = s.Write(-5)
	assert.False(t, c.Accepted)
	assert.Equal(t, 25, c.New)
	assert.Equal(t, -5, c.Proposed)
	assert.Equal(t, 25, s.Read(), "rejected write must leave value unchanged")
}

func TestVetoable_PredicateSeesOldAndProposed(t *testing.T) {
	type call struct {
		name      string
		old, prop int
	}
	var calls []call
	s := newSlot("", "level", 1, Vetoable(func(name string, old, prop int) bool {
		calls = append(calls, call{name, old, prop})
		return prop > old
	}))

	s.Write(3)
	s.Write(2)
	s.Write(5)

	assert.Equal(t, []call{{"level", 1, 3}, {"level", 3, 2}, {"level", 3, 5}}, calls)
	assert.Equal(t, 5, s.Read())
}

func TestValidating_RejectHook(t *testing.T) {
	var rejected []string
	s := newSlot("", "email", "", Validating(
		func(_ string, _, v string) bool { return strings.Contains(v, "@") },
		func(_ string, _, v string) { rejected = append(rejected, v) },
	))

	s.Write("hong@example.com")
	s.Write("not-an-email")

	assert.Equal(t, "hong@example.com", s.Read())
	assert.Equal(t, []string{"not-an-email"}, rejected)
}

func TestTransforming_Uppercase(t *testing.T) {
	s := newSlot("", "title", "", Transforming(strings.ToUpper))

	c := s.Write("kotlin")

	assert.True(t, c.Accepted)
	assert.Equal(t, "kotlin", c.Proposed)
	assert.Equal(t, "KOTLIN", s.Read())
}

func TestTransforming_AppliesToInitialValue(t *testing.T) {
	s := newSlot("", "title", "draft", Transforming(strings.ToUpper))
	assert.Equal(t, "DRAFT", s.Read())
	assert.Equal(t, "draft", s.Initial())
}

func TestTransforming_Clamp(t *testing.T) {
	clamp := func(v int) int { return min(max(v, 0), 150) }
	s := newSlot("", "age", 0, Transforming(clamp))

	s.Write(-5)
	assert.Equal(t, 0, s.Read())
	s.Write(200)
	assert.Equal(t, 150, s.Read())
	s.Write(42)
	assert.Equal(t, 42, s.Read())
}

func TestPresenting_FormatsOnReadOnly(t *testing.T) {
	s := newSlot("", "description", "", Presenting(func(v string) string { return "rect: " + v }))

	c := s.Write("blue")

	assert.Equal(t, "blue", c.New, "stored value is untouched")
	assert.Equal(t, "rect: blue", s.Read())
}

func TestPlain_PassThrough(t *testing.T) {
	s := newSlot("", "x", 1, Plain[int]())
	c := s.Write(2)
	assert.True(t, c.Accepted)
	assert.Equal(t, 2, s.Read())
}

func TestChain_ValidateThenLowercase(t *testing.T) {
	var rejected []string
	p := Chain[string](
		Validating(
			func(_ string, _, v string) bool { return strings.Contains(v, "@") },
			func(_ string, _, v string) { rejected = append(rejected, v) },
		),
		Transforming(strings.ToLower),
	)
	s := newSlot("", "email", "", p)

	s.Write("HONG@EXAMPLE.COM")
	assert.Equal(t, "hong@example.com", s.Read())

	c := s.Write("invalid")
	assert.False(t, c.Accepted)
	assert.Equal(t, "hong@example.com", s.Read())
	assert.Equal(t, []string{"invalid"}, rejected)
}

func TestChain_CommitHooksInOrder(t *testing.T) {
	var order []string
	p := Chain[int](
		Observable(func(string, int, int) { order = append(order, "first") }),
		nil,
		Observable(func(string, int, int) { order = append(order, "second") }),
	)
	s := newSlot("", "n", 0, p)

	s.Write(1)

	assert.Equal(t, []string{"first", "second"}, order)
}

func TestChain_RejectionStopsBeforeLaterMembers(t *testing.T) {
	notified := false
	p := Chain[int](
		Vetoable(func(_ string, _, v int) bool { return v >= 0 }),
		Observable(func(string, int, int) { notified = true }),
	)
	s := newSlot("", "n", 0, p)

	c := s.Write(-1)

	assert.False(t, c.Accepted)
	assert.False(t, notified, "no callback on rejection")
	assert.Equal(t, 0, s.Read())
}

func TestChain_InitAndRead(t *testing.T) {
	p := Chain[string](
		Transforming(strings.TrimSpace),
		Presenting(func(v string) string { return "[" + v + "]" }),
	)
	s := newSlot("", "tag", "  a  ", p)

	assert.Equal(t, "[a]", s.Read())
}
