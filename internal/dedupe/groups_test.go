package dedupe

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clahage/my-clever-crm-sub012/internal/contact"
)

func at(day int) time.Time {
	return time.Date(2026, 1, day, 0, 0, 0, 0, time.UTC)
}

func TestFindDuplicateGroups_ByEmail(t *testing.T) {
	contacts := []contact.Contact{
		{ID: "a", Email: "x@y.com", CreatedAt: at(2)},
		{ID: "b", Email: "x@y.com", CreatedAt: at(1)},
		{ID: "c", Email: "other@y.com", CreatedAt: at(3)},
	}

	groups := FindDuplicateGroups(contacts)
	require.Len(t, groups, 1)
	assert.Equal(t, "email:x@y.com", groups[0].Key)
	require.Len(t, groups[0].Members, 2)
	assert.Equal(t, "b", groups[0].Members[0].ID, "oldest first")
}

func TestFindDuplicateGroups_PhoneSubsumedByEmail(t *testing.T) {
	contacts := []contact.Contact{
		{ID: "a", Email: "x@y.com", Phone: "(555) 111-2222", CreatedAt: at(1)},
		{ID: "b", Email: "x@y.com", Phone: "(555) 111-2222", CreatedAt: at(2)},
	}

	groups := FindDuplicateGroups(contacts)
	require.Len(t, groups, 1, "phone group adds nothing beyond the email group")
	assert.Equal(t, "email:x@y.com", groups[0].Key)
}

func TestFindDuplicateGroups_PhoneGroupWithExtraMemberKept(t *testing.T) {
	contacts := []contact.Contact{
		{ID: "a", Email: "x@y.com", Phone: "(555) 111-2222", CreatedAt: at(1)},
		{ID: "b", Email: "x@y.com", Phone: "(555) 111-2222", CreatedAt: at(2)},
		{ID: "c", Phone: "(555) 111-2222", CreatedAt: at(3)},
	}

	groups := FindDuplicateGroups(contacts)
	require.Len(t, groups, 2)
	assert.Equal(t, "email:x@y.com", groups[0].Key)
	assert.Equal(t, "phone:(555) 111-2222", groups[1].Key)
	assert.Len(t, groups[1].Members, 3)
}

func TestFindDuplicateGroups_EmptyKeysNeverGroup(t *testing.T) {
	contacts := []contact.Contact{
		{ID: "a", CreatedAt: at(1)},
		{ID: "b", CreatedAt: at(2)},
		{ID: "c", Phone: "(555) 111-2222", CreatedAt: at(3)},
	}

	groups := FindDuplicateGroups(contacts)
	assert.Empty(t, groups)
}
