package scgi

// HeaderMap maps SCGI header names to values. Names are unique; setting an
// existing name replaces its value but keeps its original position, so
// iteration follows first-occurrence order.
type HeaderMap struct {
	names  []string
	values map[string]string
}

// NewHeaderMap builds a HeaderMap from alternating name, value arguments.
// A trailing name without a value is ignored.
func NewHeaderMap(pairs ...string) HeaderMap {
	var h HeaderMap
	for i := 0; i+1 < len(pairs); i += 2 {
		h.Set(pairs[i], pairs[i+1])
	}
	return h
}

func (h *HeaderMap) Set(name, value string) {
	if h.values == nil {
		h.values = make(map[string]string)
	}
	if _, ok := h.values[name]; !ok {
		h.names = append(h.names, name)
	}
	h.values[name] = value
}

func (h *HeaderMap) Del(name string) {
	if _, ok := h.values[name]; !ok {
		return
	}
	delete(h.values, name)
	for i, n := range h.names {
		if n == name {
			h.names = append(h.names[:i], h.names[i+1:]...)
			break
		}
	}
}

func (h HeaderMap) Get(name string) string {
	return h.values[name]
}

func (h HeaderMap) Lookup(name string) (string, bool) {
	v, ok := h.values[name]
	return v, ok
}

func (h HeaderMap) Len() int { return len(h.names) }

// Names returns the header names in order.
func (h HeaderMap) Names() []string {
	return append([]string(nil), h.names...)
}

// Each calls fn for every header in order.
func (h HeaderMap) Each(fn func(name, value string)) {
	for _, n := range h.names {
		fn(n, h.values[n])
	}
}

// Map returns the headers as a plain map.
func (h HeaderMap) Map() map[string]string {
	m := make(map[string]string, len(h.names))
	for n, v := range h.values {
		m[n] = v
	}
	return m
}

// Clone returns a deep copy of h.
func (h HeaderMap) Clone() HeaderMap {
	c := HeaderMap{names: h.Names()}
	if h.values != nil {
		c.values = h.Map()
	}
	return c
}
