package app

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/hylla/tavla/internal/domain"
)

// legacyReservedKey is a registry key older builds kept next to board keys.
const legacyReservedKey = "BoardsName"

// legacyDateLayouts lists the locale date formats older builds wrote.
var legacyDateLayouts = []string{
	time.RFC3339Nano,
	"1/2/2006, 3:04:05 PM",
	"1/2/2006, 15:04:05",
	"2/1/2006, 15:04:05",
	"02/01/2006, 15:04:05",
	"2.1.2006, 15:04:05",
	"02.01.2006, 15:04:05",
	"2006-01-02 15:04:05",
	"2006/1/2 15:04:05",
}

// legacyEntry is one element of a per-board legacy array.
type legacyEntry struct {
	ColID             string `json:"colId"`
	BoardCreationDate string `json:"boardCreationDate"`
	Text              string `json:"text"`
	Date              string `json:"date"`
}

// LegacyReport summarizes a legacy migration.
type LegacyReport struct {
	Keys   []string
	Boards int
	Tasks  int
}

// MigrateLegacy converts per-board legacy keys into the current layout and removes them.
// Keys whose values are not legacy arrays are left alone.
func (s *Service) MigrateLegacy(ctx context.Context) (LegacyReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys, err := s.store.Keys(ctx)
	if err != nil {
		return LegacyReport{}, fmt.Errorf("list keys: %w", err)
	}
	slices.Sort(keys)

	st, err := s.load(ctx)
	if err != nil {
		return LegacyReport{}, err
	}
	now := s.clock()
	report := LegacyReport{}
	for _, key := range keys {
		if key == TasksKey || key == BoardsKey || key == legacyReservedKey {
			continue
		}
		board := domain.NormalizeBoardName(key)
		if board == "" {
			continue
		}
		raw, ok, err := s.store.GetItem(ctx, key)
		if err != nil {
			return LegacyReport{}, fmt.Errorf("read %s: %w", key, err)
		}
		if !ok {
			continue
		}
		var entries []legacyEntry
		if err := json.Unmarshal([]byte(raw), &entries); err != nil {
			continue
		}

		createdAt := time.Time{}
		for _, entry := range entries {
			if strings.TrimSpace(entry.BoardCreationDate) != "" || strings.TrimSpace(entry.ColID) != "" {
				createdAt = parseLegacyDate(entry.BoardCreationDate, now)
				continue
			}
			task, err := domain.NewTask(s.idGen(), board, entry.Text, parseLegacyDate(entry.Date, now))
			if err != nil {
				continue
			}
			if st.indexOf(task.ID) >= 0 {
				continue
			}
			st.tasks = append(st.tasks, task)
			report.Tasks++
		}
		if createdAt.IsZero() {
			createdAt = now
		}
		if _, exists := st.boards[board]; !exists {
			st.boards[board] = createdAt.UTC()
			report.Boards++
		}
		report.Keys = append(report.Keys, key)
	}
	if len(report.Keys) == 0 {
		return report, nil
	}

	if err := s.saveState(ctx, st.tasks, st.boards); err != nil {
		return LegacyReport{}, err
	}
	for _, key := range report.Keys {
		if err := s.store.RemoveItem(ctx, key); err != nil {
			return report, fmt.Errorf("remove %s: %w", key, err)
		}
	}
	return report, nil
}

// parseLegacyDate parses a locale date string, tolerating a "label: " prefix.
// Unparseable values fall back to fallback.
func parseLegacyDate(raw string, fallback time.Time) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}
	candidates := []string{raw}
	if idx := strings.LastIndex(raw, ": "); idx >= 0 {
		candidates = append(candidates, strings.TrimSpace(raw[idx+2:]))
	}
	if idx := strings.Index(raw, ": "); idx >= 0 {
		candidates = append(candidates, strings.TrimSpace(raw[idx+2:]))
	}
	for _, candidate := range candidates {
		for _, layout := range legacyDateLayouts {
			if t, err := time.ParseInLocation(layout, candidate, time.Local); err == nil {
				return t.UTC()
			}
		}
	}
	return fallback
}
