package scheduler

// ResourceKind separates the teacher and class id spaces.
type ResourceKind uint8

const (
	ResourceTeacher ResourceKind = iota + 1
	ResourceClass
)

// Resource identifies something that can be busy during a slot.
type Resource struct {
	Kind ResourceKind
	ID   string
}

// TeacherResource tags a teacher id.
func TeacherResource(id string) Resource {
	return Resource{Kind: ResourceTeacher, ID: id}
}

// ClassResource tags a class id.
func ClassResource(id string) Resource {
	return Resource{Kind: ResourceClass, ID: id}
}

type occupancyKey struct {
	Resource Resource
	Day      string
}

// Occupancy records which resources are busy in which (day, slot) pairs.
// It belongs to a single allocation run and is not safe for concurrent use.
type Occupancy struct {
	busy map[occupancyKey]map[int]bool
}

// NewOccupancy returns an empty ledger.
func NewOccupancy() *Occupancy {
	return &Occupancy{busy: make(map[occupancyKey]map[int]bool)}
}

// IsRangeFree reports whether none of the duration slots starting at start are taken.
func (o *Occupancy) IsRangeFree(res Resource, day string, start, duration int) bool {
	slots := o.busy[occupancyKey{Resource: res, Day: day}]
	if slots == nil {
		return true
	}
	for idx := start; idx < start+duration; idx++ {
		if slots[idx] {
			return false
		}
	}
	return true
}

// Reserve marks the range busy. Callers check IsRangeFree for every resource of a placement first.
func (o *Occupancy) Reserve(res Resource, day string, start, duration int) {
	key := occupancyKey{Resource: res, Day: day}
	if o.busy[key] == nil {
		o.busy[key] = make(map[int]bool)
	}
	for idx := start; idx < start+duration; idx++ {
		o.busy[key][idx] = true
	}
}
