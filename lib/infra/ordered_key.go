package infra

// OrderedKey is the key domain of the ordered containers. Every member
// type supports the < operator directly, so a tree or a sorted map can
// sit on top of it without a user supplied comparator. byte comes in
// through ~uint8, rune through ~int32.
type OrderedKey interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr |
		~float32 | ~float64 |
		~string
}
