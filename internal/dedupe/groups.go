// Package dedupe finds contacts that share an identity key and collapses
// each group into its oldest record.
package dedupe

import (
	"fmt"
	"sort"

	"github.com/clahage/my-clever-crm-sub012/internal/contact"
)

// Group is a set of contacts sharing one identity key, oldest first.
type Group struct {
	Key     string
	Members []contact.Contact
}

// FindDuplicateGroups groups contacts by shared email, then by shared
// phone. Phone groups whose members are all inside a single email group
// carry no extra information and are discarded.
func FindDuplicateGroups(contacts []contact.Contact) []Group {
	byEmail := make(map[string][]contact.Contact)
	byPhone := make(map[string][]contact.Contact)
	for _, c := range contacts {
		if c.Email != "" {
			byEmail[c.Email] = append(byEmail[c.Email], c)
		}
		if c.Phone != "" {
			byPhone[c.Phone] = append(byPhone[c.Phone], c)
		}
	}

	var groups []Group
	emailSets := make([]map[string]bool, 0)
	for email, members := range byEmail {
		if len(members) < 2 {
			continue
		}
		sortByAge(members)
		groups = append(groups, Group{Key: "email:" + email, Members: members})

		ids := make(map[string]bool, len(members))
		for _, m := range members {
			ids[m.ID] = true
		}
		emailSets = append(emailSets, ids)
	}

	for phone, members := range byPhone {
		if len(members) < 2 {
			continue
		}
		if subsumed(members, emailSets) {
			continue
		}
		sortByAge(members)
		groups = append(groups, Group{Key: "phone:" + phone, Members: members})
	}

	// Map iteration order is random; stable output keeps runs comparable.
	sort.Slice(groups, func(i, j int) bool { return groups[i].Key < groups[j].Key })
	return groups
}

// subsumed reports whether every member already sits in one email group.
func subsumed(members []contact.Contact, emailSets []map[string]bool) bool {
	for _, set := range emailSets {
		all := true
		for _, m := range members {
			if !set[m.ID] {
				all = false
				break
			}
		}
		if all {
			return true
		}
	}
	return false
}

// sortByAge orders members oldest createdAt first, id as tiebreak.
func sortByAge(members []contact.Contact) {
	sort.Slice(members, func(i, j int) bool {
		if !members[i].CreatedAt.Equal(members[j].CreatedAt) {
			return members[i].CreatedAt.Before(members[j].CreatedAt)
		}
		return members[i].ID < members[j].ID
	})
}

// String implements fmt.Stringer for log output.
func (g Group) String() string {
	return fmt.Sprintf("%s (%d members)", g.Key, len(g.Members))
}
