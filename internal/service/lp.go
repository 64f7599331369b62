package service

import "dyfl-backend/internal/domain"

// LPDelta returns the signed league points change between two snapshots of
// the same queue, counting 100 LP per division step across a boundary.
// Either side missing yields 0 and no change.
func LPDelta(old, new *domain.Rank) (int, *domain.RankChange) {
	if old == nil || new == nil {
		return 0, nil
	}
	if old.SameStep(*new) {
		return new.Points - old.Points, nil
	}

	change := &domain.RankChange{From: *old, To: *new}
	if domain.CompareRank(*old, *new) > 0 {
		change.Direction = domain.Demotion
		return -(old.Points + (domain.MaxPoints - new.Points)), change
	}
	change.Direction = domain.Promotion
	return new.Points + (domain.MaxPoints - old.Points), change
}
