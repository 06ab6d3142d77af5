package state

type JobID uint64

// Job is an in-flight shipment from one tile to another.
type Job struct {
	ID           JobID
	From         TileXY
	To           TileXY
	FromPosition Point
	ToPosition   Point

	Resource string
	Amount   float64

	Fuel          string
	FuelAmount    float64
	CurrentFuel   float64
	HasEnoughFuel bool

	TicksRequired int
	TicksElapsed  int
	StalledTicks  int
}

// Progress is TicksElapsed/TicksRequired clamped to [0,1].
func (j *Job) Progress() float64 {
	if j.TicksRequired <= 0 {
		return 1
	}
	f := float64(j.TicksElapsed) / float64(j.TicksRequired)
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// PositionAt interpolates between the endpoints. frac is the fraction of the current tick
// already elapsed in real time, used for smooth rendering between ticks.
func (j *Job) PositionAt(frac float64) Point {
	if j.TicksRequired <= 0 {
		return j.ToPosition
	}
	if frac < 0 {
		frac = 0
	}
	if frac > 1 {
		frac = 1
	}
	f := (float64(j.TicksElapsed) + frac) / float64(j.TicksRequired)
	if f > 1 {
		f = 1
	}
	return Lerp(j.FromPosition, j.ToPosition, f)
}

func (j *Job) Clone() *Job {
	out := *j
	return &out
}

// Transportation holds jobs grouped by origin tile. Origins iterate in first-insertion
// order and jobs within an origin in creation order.
type Transportation struct {
	origins []TileXY
	jobs    map[TileXY][]*Job
}

func (q *Transportation) Add(j *Job) {
	if q.jobs == nil {
		q.jobs = map[TileXY][]*Job{}
	}
	if _, ok := q.jobs[j.From]; !ok {
		q.origins = append(q.origins, j.From)
	}
	q.jobs[j.From] = append(q.jobs[j.From], j)
}

func (q *Transportation) Origins() []TileXY {
	return append([]TileXY(nil), q.origins...)
}

func (q *Transportation) Jobs(origin TileXY) []*Job { return q.jobs[origin] }

// SetJobs replaces the sequence for an origin, dropping the origin when empty.
func (q *Transportation) SetJobs(origin TileXY, jobs []*Job) {
	if len(jobs) > 0 {
		if q.jobs == nil {
			q.jobs = map[TileXY][]*Job{}
		}
		if _, ok := q.jobs[origin]; !ok {
			q.origins = append(q.origins, origin)
		}
		q.jobs[origin] = jobs
		return
	}
	if _, ok := q.jobs[origin]; !ok {
		return
	}
	delete(q.jobs, origin)
	for i, o := range q.origins {
		if o == origin {
			q.origins = append(q.origins[:i], q.origins[i+1:]...)
			break
		}
	}
}

func (q *Transportation) Find(id JobID) *Job {
	for _, o := range q.origins {
		for _, j := range q.jobs[o] {
			if j.ID == id {
				return j
			}
		}
	}
	return nil
}

func (q *Transportation) Remove(id JobID) (*Job, bool) {
	for _, o := range q.origins {
		jobs := q.jobs[o]
		for i, j := range jobs {
			if j.ID != id {
				continue
			}
			rest := make([]*Job, 0, len(jobs)-1)
			rest = append(rest, jobs[:i]...)
			rest = append(rest, jobs[i+1:]...)
			q.SetJobs(o, rest)
			return j, true
		}
	}
	return nil, false
}

// All returns every job in service order.
func (q *Transportation) All() []*Job {
	var out []*Job
	for _, o := range q.origins {
		out = append(out, q.jobs[o]...)
	}
	return out
}

func (q *Transportation) Len() int {
	n := 0
	for _, jobs := range q.jobs {
		n += len(jobs)
	}
	return n
}
