package utils

// Set is a simple set implementation based on a map.
type Set[T comparable] map[T]struct{}

// MakeSet creates a new empty Set, with reserved space for the given size.
func MakeSet[T comparable](size ...int) Set[T] {
	if len(size) > 0 {
		return make(Set[T], size[0])
	}
	return make(Set[T])
}

// SetWith creates a Set with the given elements inserted.
func SetWith[T comparable](elements ...T) Set[T] {
	s := MakeSet[T](len(elements))
	s.Insert(elements...)
	return s
}

// Insert the given elements into the set.
func (s Set[T]) Insert(elements ...T) {
	for _, element := range elements {
		s[element] = struct{}{}
	}
}

// Has returns whether the element is in the set.
func (s Set[T]) Has(element T) bool {
	_, found := s[element]
	return found
}

// Sub returns a new set with the elements of s that are not in other.
func (s Set[T]) Sub(other Set[T]) Set[T] {
	result := MakeSet[T](len(s))
	for element := range s {
		if !other.Has(element) {
			result.Insert(element)
		}
	}
	return result
}

// Equal returns whether both sets hold exactly the same elements.
func (s Set[T]) Equal(other Set[T]) bool {
	if len(s) != len(other) {
		return false
	}
	for element := range s {
		if !other.Has(element) {
			return false
		}
	}
	return true
}
