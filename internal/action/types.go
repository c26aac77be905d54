// types.go - the Action sum type and its sub-specs (spec.md section 3).
//
// Modeled as a tagged struct rather than an interface hierarchy: design
// notes (spec.md section 9) call specifically for "a tagged variant with
// one arm holding a function pointer" for HoldTapConfig::Custom, and a
// tagged struct generalizes cleanly to the rest of the sum type too.
package action

// Keycode is a standard HID keycode (or an internal modifier bit encoded
// as its own keycode, same as the source firmware's convention).
type Keycode uint8

// Kind discriminates the Action tagged union.
type Kind int

const (
	NoOp Kind = iota
	Transparent
	Key
	MultiKey
	MultiAction
	LayerMomentary
	ToggleLayer
	DefaultLayer
	HoldTap
	OneShot
	TapDance
	Sequence
	Custom
)

// CustomKind enumerates the known Custom tags the engine recognizes and
// forwards onto the command bus (spec.md section 4.2, "Custom events and
// feature keycodes").
type CustomKind int

const (
	CustomLighting CustomKind = iota
	CustomUnderglow
	CustomBluetooth
	CustomHidOutputToggle
)

// DecisionPolicy selects how a HoldTap resolves before its timeout.
type DecisionPolicy int

const (
	PolicyTimeout DecisionPolicy = iota
	PolicyHoldOnOtherKeyPress
	PolicyPermissiveHold
	PolicyCustom
)

// Decision is the outcome a HoldTap resolves to.
type Decision int

const (
	DecisionNone Decision = iota
	DecisionHold
	DecisionTap
)

// StackedEvent is a queued event observed while a HoldTap/TapDance
// decision is pending, carrying the tick it arrived at (spec.md section 3,
// "Pending Waiter").
type StackedEvent struct {
	Row, Col int
	Pressed  bool
	Tick     uint64
}

// CustomPolicyFunc examines the stacked event history and optionally
// returns a decision. Compared/logged by pointer identity, never by value
// (design notes section 9).
type CustomPolicyFunc func(history []StackedEvent) (Decision, bool)

// HoldTapSpec parametrizes a HoldTap action.
type HoldTapSpec struct {
	Timeout      uint64 // ticks
	Hold, Tap    *Action
	Policy       DecisionPolicy
	CustomPolicy CustomPolicyFunc

	// TapHoldInterval: if a previous tap of this same binding resolved at
	// least TapHoldInterval ticks ago, an early release resolves Hold
	// instead of Tap; a binding that has never tapped, or whose last tap
	// is more recent than that, resolves Tap. TapHoldInterval <= 0
	// disables the check entirely (see
	// SPEC_FULL.md section 12, supplemented from original_source/).
	TapHoldInterval int64
}

// EndPolicy selects when an armed OneShot clears.
type EndPolicy int

const (
	EndOnFirstPress EndPolicy = iota
	EndOnFirstPressOrRepress
	EndOnFirstRelease
	EndOnFirstReleaseOrRepress
)

// OneShotSpec parametrizes a OneShot action.
type OneShotSpec struct {
	Action    *Action
	Timeout   uint64
	EndPolicy EndPolicy
}

// TapDanceSpec parametrizes a TapDance action.
type TapDanceSpec struct {
	Actions []*Action
	Timeout uint64
	Eager   bool
}

// SeqEventKind discriminates a Sequence step.
type SeqEventKind int

const (
	SeqPress SeqEventKind = iota
	SeqRelease
	SeqDelay
	SeqComplete
)

// SeqEvent is one scripted step of a Sequence (macro).
type SeqEvent struct {
	Kind  SeqEventKind
	Code  Keycode
	Ticks uint64 // only meaningful for SeqDelay
}

// Action is the immutable, pointer-stable node referenced from layer
// tables. All Action data is built once at keymap-construction time and
// never allocated at runtime by the engine (spec.md section 3).
type Action struct {
	Kind Kind

	Code  Keycode   // Key
	Codes []Keycode // MultiKey
	Acts  []*Action // MultiAction

	LayerNum int // LayerMomentary / ToggleLayer / DefaultLayer

	HT *HoldTapSpec
	OS *OneShotSpec
	TD *TapDanceSpec
	Seq []SeqEvent

	CustomTag     CustomKind
	CustomPayload any
}

func NewKey(code Keycode) *Action        { return &Action{Kind: Key, Code: code} }
func NewMultiKey(codes ...Keycode) *Action { return &Action{Kind: MultiKey, Codes: codes} }
func NewMultiAction(acts ...*Action) *Action { return &Action{Kind: MultiAction, Acts: acts} }
func NewLayerMomentary(n int) *Action     { return &Action{Kind: LayerMomentary, LayerNum: n} }
func NewToggleLayer(n int) *Action        { return &Action{Kind: ToggleLayer, LayerNum: n} }
func NewDefaultLayer(n int) *Action       { return &Action{Kind: DefaultLayer, LayerNum: n} }

func NewHoldTap(spec HoldTapSpec) *Action { return &Action{Kind: HoldTap, HT: &spec} }
func NewOneShot(spec OneShotSpec) *Action { return &Action{Kind: OneShot, OS: &spec} }
func NewTapDance(spec TapDanceSpec) *Action { return &Action{Kind: TapDance, TD: &spec} }
func NewSequence(events ...SeqEvent) *Action { return &Action{Kind: Sequence, Seq: events} }
func NewCustom(tag CustomKind, payload any) *Action {
	return &Action{Kind: Custom, CustomTag: tag, CustomPayload: payload}
}

var noOpAction = &Action{Kind: NoOp}
var transparentAction = &Action{Kind: Transparent}

// NoOpAction and TransparentAction are the shared singleton instances for
// the zero-data Action variants.
func NoOpAction() *Action        { return noOpAction }
func TransparentAction() *Action { return transparentAction }
