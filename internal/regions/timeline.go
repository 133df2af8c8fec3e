package regions

import (
	"regionwatch/internal/types"
)

// SetMode switches between single-instant and range resolution. Both the
// instant and the range are retained across switches.
func (s *Store) SetMode(mode types.TimelineMode) error {
	if !mode.Valid() {
		return types.NewAppErrorWithDetails(
			types.ErrCodeValidationInvalidTimeline,
			"unknown timeline mode",
			nil,
			map[string]any{"mode": string(mode)},
		)
	}
	_, err := s.mutate(func() (Change, bool, error) {
		if s.timeline.Mode == mode {
			return Change{}, false, nil
		}
		s.timeline.Mode = mode
		return Change{Kind: ChangeTimeline, Fields: FieldMode}, true, nil
	})
	return err
}

// SetInstant moves the single-instant position within [0, WindowHours].
func (s *Store) SetInstant(hour int) error {
	if err := types.ValidateHour(hour); err != nil {
		return err
	}
	_, err := s.mutate(func() (Change, bool, error) {
		if s.timeline.Instant == hour {
			return Change{}, false, nil
		}
		s.timeline.Instant = hour
		return Change{Kind: ChangeTimeline, Fields: FieldInstant}, true, nil
	})
	return err
}

// SetRange sets the inclusive range. Out-of-bounds or reversed ranges are
// rejected, so the stored range is always ordered.
func (s *Store) SetRange(start, end int) error {
	if err := types.ValidateHour(start); err != nil {
		return err
	}
	if err := types.ValidateHour(end); err != nil {
		return err
	}
	if start > end {
		return types.NewAppErrorWithDetails(
			types.ErrCodeValidationInvalidTimeline,
			"range start must not be after range end",
			nil,
			map[string]any{"start": start, "end": end},
		)
	}
	_, err := s.mutate(func() (Change, bool, error) {
		next := [2]int{start, end}
		if s.timeline.Range == next {
			return Change{}, false, nil
		}
		s.timeline.Range = next
		return Change{Kind: ChangeTimeline, Fields: FieldRange}, true, nil
	})
	return err
}

// SetPlaying sets the playback flag.
func (s *Store) SetPlaying(playing bool) {
	_, _ = s.mutate(func() (Change, bool, error) {
		if s.timeline.Playing == playing {
			return Change{}, false, nil
		}
		s.timeline.Playing = playing
		return Change{Kind: ChangeTimeline, Fields: FieldPlaying}, true, nil
	})
}

// ResetTimeline restores the default timeline.
func (s *Store) ResetTimeline() {
	_, _ = s.mutate(func() (Change, bool, error) {
		def := types.DefaultTimeline()
		var fields Field
		if s.timeline.Mode != def.Mode {
			fields |= FieldMode
		}
		if s.timeline.Instant != def.Instant {
			fields |= FieldInstant
		}
		if s.timeline.Range != def.Range {
			fields |= FieldRange
		}
		if s.timeline.Playing != def.Playing {
			fields |= FieldPlaying
		}
		if fields == 0 {
			return Change{}, false, nil
		}
		s.timeline = def
		return Change{Kind: ChangeTimeline, Fields: fields}, true, nil
	})
}

// SetViewport stores the map camera.
func (s *Store) SetViewport(v types.Viewport) error {
	if err := types.ValidateViewport(v); err != nil {
		return err
	}
	_, err := s.mutate(func() (Change, bool, error) {
		if s.viewport == v {
			return Change{}, false, nil
		}
		s.viewport = v
		return Change{Kind: ChangeViewport}, true, nil
	})
	return err
}

// Viewport returns the current map camera.
func (s *Store) Viewport() types.Viewport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.viewport
}

// SetLoading sets the loading flag.
func (s *Store) SetLoading(loading bool) {
	_, _ = s.mutate(func() (Change, bool, error) {
		if s.status.Loading == loading {
			return Change{}, false, nil
		}
		s.status.Loading = loading
		return Change{Kind: ChangeStatus}, true, nil
	})
}

// SetError records a user-facing error message.
func (s *Store) SetError(msg string) {
	_, _ = s.mutate(func() (Change, bool, error) {
		if s.status.Error == msg {
			return Change{}, false, nil
		}
		s.status.Error = msg
		return Change{Kind: ChangeStatus}, true, nil
	})
}

// ClearError clears the error message.
func (s *Store) ClearError() {
	s.SetError("")
}

// Status returns the transient status.
func (s *Store) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}
