package bal

import "errors"

// Validation errors. These are distinct from the rlp package's decode
// errors: a syntactically valid encoding can still violate the bounds and
// ordering invariants checked here.
var (
	// ErrTxIndexRange is returned when a transaction index is >= MaxTxs.
	ErrTxIndexRange = errors.New("bal: transaction index out of range")

	// ErrTooManyAccounts is returned when a list exceeds MaxAccounts.
	ErrTooManyAccounts = errors.New("bal: too many accounts")

	// ErrTooManySlots is returned when the total slot entries exceed MaxSlots.
	ErrTooManySlots = errors.New("bal: too many storage slots")

	// ErrCodeTooLarge is returned when a code change exceeds MaxCodeSize.
	ErrCodeTooLarge = errors.New("bal: code exceeds maximum size")

	// ErrAccountOrder is returned when account addresses are not in
	// strictly ascending order.
	ErrAccountOrder = errors.New("bal: accounts out of order")

	// ErrSlotOrder is returned when slot keys within an account are not in
	// strictly ascending order.
	ErrSlotOrder = errors.New("bal: storage slots out of order")

	// ErrChangeOrder is returned when changes within a list are not in
	// ascending transaction index order.
	ErrChangeOrder = errors.New("bal: changes out of order")

	// ErrDuplicateTxIndex is returned in strict validation when a change
	// list carries two entries for the same transaction index.
	ErrDuplicateTxIndex = errors.New("bal: duplicate transaction index")
)
