package dedupe

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/clahage/my-clever-crm-sub012/internal/contact"
	"github.com/clahage/my-clever-crm-sub012/internal/monitoring"
	"github.com/clahage/my-clever-crm-sub012/internal/resilience"
)

// noteDelimiter separates note blocks from merged records.
const noteDelimiter = "\n---\n"

// Store is the persistence surface the merge engine needs: contacts plus
// the lease that keeps two merge passes from interleaving.
type Store interface {
	contact.Store
	AcquireMergeLease(ctx context.Context, holder string, ttl time.Duration) (bool, error)
	ReleaseMergeLease(ctx context.Context, holder string) error
}

// ErrLeaseHeld is returned when another merge pass is already running.
var ErrLeaseHeld = eris.New("dedupe: merge lease held by another pass")

// Report summarizes one merge pass.
type Report struct {
	Groups   int `json:"groups"`
	Merged   int `json:"merged"`
	Absorbed int `json:"absorbed"`
}

// Engine collapses duplicate groups. Merges are destructive (absorbed
// records are deleted), so callers gate Run behind an explicit
// confirmation; the engine itself never asks.
type Engine struct {
	store    Store
	notifier monitoring.Notifier
	limiter  *rate.Limiter
	leaseTTL time.Duration
	now      func() time.Time
}

// NewEngine creates a merge engine. mergesPerSecond throttles writes so a
// large pass does not starve live ingestion; zero means no throttle.
func NewEngine(store Store, notifier monitoring.Notifier, mergesPerSecond float64) *Engine {
	if notifier == nil {
		notifier = monitoring.NopNotifier{}
	}
	limit := rate.Inf
	if mergesPerSecond > 0 {
		limit = rate.Limit(mergesPerSecond)
	}
	return &Engine{
		store:    store,
		notifier: notifier,
		limiter:  rate.NewLimiter(limit, 1),
		leaseTTL: 10 * time.Minute,
		now:      time.Now,
	}
}

// Plan lists the duplicate groups a pass would merge, without writing.
func (e *Engine) Plan(ctx context.Context) ([]Group, error) {
	contacts, err := e.store.ListContacts(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "dedupe: list contacts")
	}
	return FindDuplicateGroups(contacts), nil
}

// Run executes a full merge pass under the merge lease. Re-running after a
// partial failure is safe: already-recorded absorptions are not re-folded,
// their leftovers are just deleted.
func (e *Engine) Run(ctx context.Context) (*Report, error) {
	holder := uuid.New().String()
	ok, err := e.store.AcquireMergeLease(ctx, holder, e.leaseTTL)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLeaseHeld
	}
	defer func() {
		if err := e.store.ReleaseMergeLease(context.WithoutCancel(ctx), holder); err != nil {
			zap.L().Warn("dedupe: failed to release merge lease", zap.Error(err))
		}
	}()

	groups, err := e.Plan(ctx)
	if err != nil {
		return nil, err
	}

	report := &Report{Groups: len(groups)}
	for _, g := range groups {
		if err := e.limiter.Wait(ctx); err != nil {
			return report, err
		}
		absorbed, err := e.mergeGroup(ctx, g)
		if err != nil {
			return report, eris.Wrapf(err, "dedupe: merge group %s", g.Key)
		}
		if absorbed > 0 {
			report.Merged++
			report.Absorbed += absorbed
		}
	}

	zap.L().Info("dedupe: merge pass complete",
		zap.Int("groups", report.Groups),
		zap.Int("merged", report.Merged),
		zap.Int("absorbed", report.Absorbed),
	)
	if report.Absorbed > 0 {
		e.notifier.Notify(ctx, monitoring.Event{
			Type:     monitoring.EventMergeComplete,
			Severity: "low",
			Message:  fmt.Sprintf("merged %d duplicate groups, absorbed %d records", report.Merged, report.Absorbed),
			Details:  map[string]any{"groups": report.Groups, "absorbed": report.Absorbed},
		})
	}
	return report, nil
}

// mergeGroup runs the two-phase merge for one group: fold absorbed records
// into the master and record them in mergeHistory (phase one), then delete
// the absorbed records (phase two).
func (e *Engine) mergeGroup(ctx context.Context, g Group) (int, error) {
	masterID := g.Members[0].ID
	duplicateIDs := make([]string, 0, len(g.Members)-1)
	for _, m := range g.Members[1:] {
		duplicateIDs = append(duplicateIDs, m.ID)
	}

	cfg := resilience.ConflictRetryConfig()
	cfg.ShouldRetry = resilience.RetryAlso(contact.ErrVersionConflict)
	cfg.OnRetry = resilience.RetryLogger("dedupe", "merge group")

	toDelete, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) ([]string, error) {
		master, err := e.store.GetContact(ctx, masterID)
		if err != nil {
			return nil, err
		}
		if master == nil {
			// Master itself was absorbed by a wider group this pass.
			return nil, nil
		}

		recorded := absorbedSet(master)
		var fold []*contact.Contact
		var deleteIDs []string
		for _, id := range duplicateIDs {
			dup, err := e.store.GetContact(ctx, id)
			if err != nil {
				return nil, err
			}
			if dup == nil {
				continue // already deleted by an earlier pass
			}
			deleteIDs = append(deleteIDs, id)
			if recorded[id] {
				continue // folded by an interrupted pass, delete only
			}
			fold = append(fold, dup)
		}
		if len(fold) == 0 {
			return deleteIDs, nil
		}

		foldedIDs := make([]string, 0, len(fold))
		for _, dup := range fold {
			absorb(master, dup)
			foldedIDs = append(foldedIDs, dup.ID)
		}
		sort.SliceStable(master.ActivityLog, func(i, j int) bool {
			return master.ActivityLog[i].Timestamp.Before(master.ActivityLog[j].Timestamp)
		})
		master.MergeHistory = append(master.MergeHistory, contact.MergeEvent{
			Timestamp:   e.now().UTC(),
			AbsorbedIDs: foldedIDs,
		})
		if master.Category == contact.CategoryLead {
			master.Status = contact.StatusForScore(master.LeadScore)
		}
		master.Recompute()

		if err := e.store.UpdateContact(ctx, master); err != nil {
			return nil, err
		}
		return deleteIDs, nil
	})
	if err != nil {
		return 0, err
	}

	for _, id := range toDelete {
		if err := e.store.DeleteContact(ctx, id); err != nil {
			return 0, eris.Wrapf(err, "delete absorbed %s", id)
		}
		zap.L().Debug("dedupe: absorbed contact deleted",
			zap.String("master_id", masterID),
			zap.String("absorbed_id", id),
		)
	}
	return len(toDelete), nil
}

// absorb folds one duplicate into the master. Identity, name, scores, and
// set fields go through the same non-destructive policy ingestion uses;
// revenue sums, frequency counts each absorbed record once, notes
// concatenate in age order, activity logs union.
func absorb(master, dup *contact.Contact) {
	master.Apply(contact.Update{
		FirstName:       dup.FirstName,
		LastName:        dup.LastName,
		Provenance:      dup.NameProvenance,
		Email:           dup.Email,
		Phone:           dup.Phone,
		LeadScore:       dup.LeadScore,
		EngagementScore: dup.EngagementScore,
		UrgencyLevel:    dup.UrgencyLevel,
		Roles:           dup.Roles,
		Tags:            dup.Tags,
		DataFlags:       dup.DataFlags,
		Sources:         dup.Sources,
	})

	master.ContactFrequency++
	master.TotalRevenue += dup.TotalRevenue
	if dup.LastContact.After(master.LastContact) {
		master.LastContact = dup.LastContact
	}
	if dup.Notes != "" {
		if master.Notes != "" {
			master.Notes += noteDelimiter
		}
		master.Notes += dup.Notes
	}
	master.ActivityLog = append(master.ActivityLog, dup.ActivityLog...)
	master.ProcessedSignalIDs = contact.UnionStrings(master.ProcessedSignalIDs, dup.ProcessedSignalIDs)
	master.MergeHistory = append(master.MergeHistory, dup.MergeHistory...)
}

func absorbedSet(c *contact.Contact) map[string]bool {
	set := make(map[string]bool)
	for _, ev := range c.MergeHistory {
		for _, id := range ev.AbsorbedIDs {
			set[id] = true
		}
	}
	return set
}
