package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateFarm              OutboxAggregateType = "farm"
	AggregateLedgerEntry       OutboxAggregateType = "ledger_entry"
	AggregateReceiptSubmission OutboxAggregateType = "receipt_submission"
	AggregateTrustScoreEvent   OutboxAggregateType = "trust_score_event"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateFarm,
	AggregateLedgerEntry,
	AggregateReceiptSubmission,
	AggregateTrustScoreEvent,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventDonationRecorded           OutboxEventType = "donation_recorded"
	EventReceiptVerified            OutboxEventType = "receipt_verified"
	EventSettlementCompleted        OutboxEventType = "settlement_completed"
	EventSettlementPartialFailure   OutboxEventType = "settlement_partial_failure"
	EventTrustScoreDeltaApplied     OutboxEventType = "trust_score_delta_applied"
	EventPhotoBatchFullyValidated   OutboxEventType = "photo_batch_fully_validated"
	EventMissingUploadPenaltyPosted OutboxEventType = "missing_upload_penalty_posted"
)

var validOutboxEventTypes = []OutboxEventType{
	EventDonationRecorded,
	EventReceiptVerified,
	EventSettlementCompleted,
	EventSettlementPartialFailure,
	EventTrustScoreDeltaApplied,
	EventPhotoBatchFullyValidated,
	EventMissingUploadPenaltyPosted,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
