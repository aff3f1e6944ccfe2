package domain

import "time"

type ConditionType string

const (
	ConditionBalanceCheck      ConditionType = "balance_check"
	ConditionPriceThreshold    ConditionType = "price_threshold"
	ConditionTimeBased         ConditionType = "time_based"
	ConditionEventTrigger      ConditionType = "event_trigger"
	ConditionOracleData        ConditionType = "oracle_data"
	ConditionApprovalReceived  ConditionType = "approval_received"
	ConditionDeliveryConfirmed ConditionType = "delivery_confirmed"
	ConditionCustom            ConditionType = "custom"
)

type ConditionOperator string

const (
	OperatorEquals    ConditionOperator = "equals"
	OperatorNotEquals ConditionOperator = "not_equals"
	OperatorGT        ConditionOperator = "gt"
	OperatorLT        ConditionOperator = "lt"
	OperatorGTE       ConditionOperator = "gte"
	OperatorLTE       ConditionOperator = "lte"
	OperatorContains  ConditionOperator = "contains"
	OperatorInRange   ConditionOperator = "in_range"
)

type ConditionStatus string

const (
	ConditionStatusPending ConditionStatus = "pending"
	ConditionStatusMet     ConditionStatus = "met"
	ConditionStatusNotMet  ConditionStatus = "not_met"
)

// Condition is a typed predicate gating conditional or escrow
// execution. Value is the target; Actual is the latest observed value
// recorded from the outside (unused for time_based, which compares the
// evaluation clock against Value).
type Condition struct {
	Type        ConditionType     `json:"type"`
	Operator    ConditionOperator `json:"operator"`
	Value       string            `json:"value"`
	Actual      string            `json:"actual,omitempty"`
	Status      ConditionStatus   `json:"status"`
	EvaluatedAt *time.Time        `json:"evaluated_at,omitempty"`
}
