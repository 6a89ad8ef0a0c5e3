package operations

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.EncOptions{Time: cbor.TimeRFC3339Nano, Sort: cbor.SortCanonical}.EncMode()
	if err != nil {
		panic(err)
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic(err)
	}
}

// Encode serializes op into its CBOR payload.
func Encode(op Operation) ([]byte, error) {
	if op == nil {
		return nil, fmt.Errorf("encode operation: nil operation")
	}
	payload, err := encMode.Marshal(op)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", op.Kind(), err)
	}
	return payload, nil
}

// Decode rebuilds the typed operation stored under kind. Unknown kinds yield
// a *ReplayDispatchError.
func Decode(kind Kind, payload []byte) (Operation, error) {
	switch kind {
	case KindStartHarvestSession:
		return decodeAs[StartHarvestSession](kind, payload)
	case KindUpdateHarvestManager:
		return decodeAs[UpdateHarvestManager](kind, payload)
	case KindUpsertHarvesters:
		return decodeAs[UpsertHarvesters](kind, payload)
	case KindUpdateSessionProgress:
		return decodeAs[UpdateSessionProgress](kind, payload)
	case KindAddRegister:
		return decodeAs[AddRegister](kind, payload)
	case KindUpdateRegister:
		return decodeAs[UpdateRegister](kind, payload)
	case KindDeleteRegister:
		return decodeAs[DeleteRegister](kind, payload)
	case KindCreateSilobag:
		return decodeAs[CreateSilobag](kind, payload)
	case KindExtractSilobag:
		return decodeAs[ExtractSilobag](kind, payload)
	case KindCloseSilobag:
		return decodeAs[CloseSilobag](kind, payload)
	case KindCreateLogistics:
		return decodeAs[CreateLogistics](kind, payload)
	case KindUpdateLogisticsStatus:
		return decodeAs[UpdateLogisticsStatus](kind, payload)
	default:
		return nil, &ReplayDispatchError{Kind: kind}
	}
}

func decodeAs[T Operation](kind Kind, payload []byte) (Operation, error) {
	var op T
	if err := decMode.Unmarshal(payload, &op); err != nil {
		return nil, fmt.Errorf("decode %s: %w", kind, err)
	}
	return op, nil
}
