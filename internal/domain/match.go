package domain

type QueueKind string

const (
	// QueueAny is only meaningful as a match-list filter.
	QueueAny   QueueKind = ""
	QueueSolo  QueueKind = "SoloQ"
	QueueFlex  QueueKind = "Flex"
	QueueOther QueueKind = "Other"
)

const (
	QueueIDRankedSolo = 420
	QueueIDRankedFlex = 440
)

func QueueKindFromID(queueID int) QueueKind {
	switch queueID {
	case QueueIDRankedSolo:
		return QueueSolo
	case QueueIDRankedFlex:
		return QueueFlex
	default:
		return QueueOther
	}
}

func (q QueueKind) IsRanked() bool {
	return q == QueueSolo || q == QueueFlex
}

type ParticipantResult struct {
	AccountID    string
	Win          bool
	ChampionID   int
	ChampionName string
	Kills        int
	Deaths       int
	Assists      int
}

type MatchSummary struct {
	MatchID         string
	QueueID         int
	Queue           QueueKind
	DurationSeconds int
	Participants    []ParticipantResult
}

func (m *MatchSummary) Participant(accountID string) (ParticipantResult, bool) {
	for _, p := range m.Participants {
		if p.AccountID == accountID {
			return p, true
		}
	}
	return ParticipantResult{}, false
}
