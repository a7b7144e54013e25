// Package state declares the closed set of conversation states and how they
// partition into onboarding, menu and routed (sub-flow owned) states.
package state

import "sort"

// State is the tag persisted on every session.
type State string

// Onboarding
const (
	AwaitingID      State = "AWAITING_ID"
	OnboardingName  State = "ONBOARDING_NAME"
	OnboardingEmail State = "ONBOARDING_EMAIL"
)

// Menus
const (
	MainMenu     State = "MAIN_MENU"
	ServicesMenu State = "SERVICES_MENU"
)

// Document request
const (
	AwaitingCreditorName State = "AWAITING_CREDITOR_NAME"
	AwaitingRequestID    State = "AWAITING_REQ_ID"
	AwaitingPoaUpload    State = "AWAITING_POA_UPLOAD"
	AwaitingPorUpload    State = "AWAITING_POR_UPLOAD"
)

// Negotiation
const (
	AwaitingNegotiationCreditor State = "AWAITING_NEGOTIATION_CREDITOR"
	AwaitingPaymentMethod       State = "AWAITING_PAYMENT_METHOD"
	AwaitingNegotiationPoa      State = "AWAITING_NEG_POA"
	AwaitingNegotiationPor      State = "AWAITING_NEG_POR"
)

// Eligibility screening
const (
	AwaitingScreeningCreditor  State = "AWAITING_PRES_CREDITOR"
	AwaitingYearsSincePayment  State = "AWAITING_LAST_PAYMENT_DATE"
	AwaitingPaymentArrangement State = "AWAITING_PAYMENT_ARRANGEMENT"
	AwaitingAnyPayments        State = "AWAITING_ANY_PAYMENTS"
	AwaitingSummons            State = "AWAITING_SUMMONS"
)

// File intake and car finance
const (
	AwaitingFileUpdateQuery State = "AWAITING_FILE_UPDATE_QUERY"
	AwaitingCarDocuments    State = "AWAITING_CAR_DOCUMENTS"
)

// Initial is the state of a freshly created session.
const Initial = AwaitingID

// Partition groups states by who handles them.
type Partition int

const (
	PartitionUnknown Partition = iota
	PartitionOnboarding
	PartitionMenu
	PartitionRouted
)

func (p Partition) String() string {
	switch p {
	case PartitionOnboarding:
		return "onboarding"
	case PartitionMenu:
		return "menu"
	case PartitionRouted:
		return "routed"
	default:
		return "unknown"
	}
}

var partitions = map[State]Partition{
	AwaitingID:      PartitionOnboarding,
	OnboardingName:  PartitionOnboarding,
	OnboardingEmail: PartitionOnboarding,

	MainMenu:     PartitionMenu,
	ServicesMenu: PartitionMenu,

	AwaitingCreditorName: PartitionRouted,
	AwaitingRequestID:    PartitionRouted,
	AwaitingPoaUpload:    PartitionRouted,
	AwaitingPorUpload:    PartitionRouted,

	AwaitingNegotiationCreditor: PartitionRouted,
	AwaitingPaymentMethod:       PartitionRouted,
	AwaitingNegotiationPoa:      PartitionRouted,
	AwaitingNegotiationPor:      PartitionRouted,

	AwaitingScreeningCreditor:  PartitionRouted,
	AwaitingYearsSincePayment:  PartitionRouted,
	AwaitingPaymentArrangement: PartitionRouted,
	AwaitingAnyPayments:        PartitionRouted,
	AwaitingSummons:            PartitionRouted,

	AwaitingFileUpdateQuery: PartitionRouted,
	AwaitingCarDocuments:    PartitionRouted,
}

// Partition returns the partition of s, or PartitionUnknown for a tag outside the set.
func (s State) Partition() Partition {
	return partitions[s]
}

// Valid reports whether s belongs to the declared state set.
func (s State) Valid() bool {
	return s.Partition() != PartitionUnknown
}

func (s State) IsOnboarding() bool { return s.Partition() == PartitionOnboarding }
func (s State) IsMenu() bool       { return s.Partition() == PartitionMenu }
func (s State) IsRouted() bool     { return s.Partition() == PartitionRouted }

func (s State) String() string { return string(s) }

// All returns every declared state in a stable order.
func All() []State {
	out := make([]State, 0, len(partitions))
	for s := range partitions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Routed returns every state that must be owned by exactly one sub-flow engine.
func Routed() []State {
	var out []State
	for _, s := range All() {
		if s.IsRouted() {
			out = append(out, s)
		}
	}
	return out
}
