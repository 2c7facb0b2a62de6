package rbac

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	role string
}

func (f *fakeSession) Role() string        { return f.role }
func (f *fakeSession) SetRole(role string) { f.role = role }

func TestHolderStartsAtDefaultRole(t *testing.T) {
	require.Equal(t, RoleEmployee, NewHolder().Current())
	require.Equal(t, DefaultRole, NewHolder().Current())
}

func TestHolderReplaceIsImmediatelyVisible(t *testing.T) {
	h := NewHolder()
	for _, role := range Roles() {
		h.Replace(role)
		require.Equal(t, role, h.Current())
	}
}

func TestHolderReplaceIsIdempotent(t *testing.T) {
	once := NewHolder()
	once.Replace(RoleManager)

	twice := NewHolder()
	twice.Replace(RoleManager)
	twice.Replace(RoleManager)

	require.Equal(t, once.Current(), twice.Current())
}

func TestHolderConcurrentReadersSeeWholeValues(t *testing.T) {
	h := NewHolder()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			h.Replace(Roles()[i%len(Roles())])
		}
	}()
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				if !h.Current().Valid() {
					t.Errorf("observed partial role %q", h.Current())
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestSessionHolderDefaultsAndReplaces(t *testing.T) {
	sess := &fakeSession{}
	h := NewSessionHolder(sess)
	require.Equal(t, DefaultRole, h.Current())

	h.Replace(RoleHRAdmin)
	require.Equal(t, "hr_admin", sess.role)
	require.Equal(t, RoleHRAdmin, h.Current())

	sess.role = "superuser"
	require.Equal(t, DefaultRole, h.Current())
}

func TestSessionHolderWithoutSession(t *testing.T) {
	h := NewSessionHolder(nil)
	h.Replace(RoleAdmin)
	require.Equal(t, DefaultRole, h.Current())
}

func TestHolderFromContext(t *testing.T) {
	require.Equal(t, DefaultRole, HolderFromContext(context.Background()).Current())

	ctx := ContextWithHolder(context.Background(), NewHolderWith(RoleManager))
	require.Equal(t, RoleManager, HolderFromContext(ctx).Current())
}
