// Package bpfloader manages the lifecycle of the capture program and its
// kernel attachments.
package bpfloader

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/link"
	"github.com/cilium/ebpf/ringbuf"
)

// EventsMap is the ring buffer the capture program writes to.
const EventsMap = "events"

// Loader manages the loaded collection and its attachments.
type Loader struct {
	coll  *ebpf.Collection
	specs map[string]*ebpf.ProgramSpec
	links []namedLink
}

type namedLink struct {
	name string
	link link.Link
}

// New loads the compiled object at path into the kernel.
func New(path string) (*Loader, error) {
	spec, err := ebpf.LoadCollectionSpec(path)
	if err != nil {
		return nil, fmt.Errorf("loading BPF object %s: %w", path, err)
	}
	if _, ok := spec.Maps[EventsMap]; !ok {
		return nil, fmt.Errorf("BPF object %s has no %q map", path, EventsMap)
	}

	coll, err := ebpf.NewCollection(spec)
	if err != nil {
		return nil, fmt.Errorf("loading BPF objects: %w", err)
	}

	return &Loader{coll: coll, specs: spec.Programs}, nil
}

// closeErrorf closes all attached links and returns a formatted error.
func (l *Loader) closeErrorf(errstr string, e error) error {
	for i := len(l.links) - 1; i >= 0; i-- {
		_ = l.links[i].link.Close() //nolint:errcheck // Best-effort cleanup in error path
	}
	l.links = nil
	return fmt.Errorf("%s: %w", errstr, e)
}

// Attach attaches every program according to its section: fentry/fexit as
// tracing links, kprobe/kretprobe on their symbol, tracepoint/<group>/<name>.
func (l *Loader) Attach() error {
	names := make([]string, 0, len(l.coll.Programs))
	for name := range l.coll.Programs {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		lk, err := attach(l.specs[name], l.coll.Programs[name])
		if err != nil {
			return l.closeErrorf(fmt.Sprintf("attaching %s", name), err)
		}
		l.links = append(l.links, namedLink{name: name, link: lk})
		log.Printf("Attached %s (%s)", name, l.specs[name].SectionName)
	}

	if len(l.links) == 0 {
		return errors.New("BPF object contains no programs")
	}
	return nil
}

func attach(spec *ebpf.ProgramSpec, prog *ebpf.Program) (link.Link, error) {
	section := spec.SectionName
	switch spec.Type {
	case ebpf.Tracing:
		return link.AttachTracing(link.TracingOptions{Program: prog})
	case ebpf.Kprobe:
		if strings.HasPrefix(section, "kretprobe/") {
			return link.Kretprobe(spec.AttachTo, prog, nil)
		}
		return link.Kprobe(spec.AttachTo, prog, nil)
	case ebpf.TracePoint:
		parts := strings.Split(section, "/")
		if len(parts) != 3 {
			return nil, fmt.Errorf("unsupported tracepoint section %q", section)
		}
		return link.Tracepoint(parts[1], parts[2], prog, nil)
	default:
		return nil, fmt.Errorf("unsupported program type %s in section %q", spec.Type, section)
	}
}

// OpenRingBuffer opens and returns a ring buffer reader for receiving events.
func (l *Loader) OpenRingBuffer() (*ringbuf.Reader, error) {
	rd, err := ringbuf.NewReader(l.coll.Maps[EventsMap])
	if err != nil {
		return nil, fmt.Errorf("opening ring buffer: %w", err)
	}
	return rd, nil
}

// Close releases all BPF resources including links and loaded objects.
func (l *Loader) Close() error {
	var errs []error

	for i := len(l.links) - 1; i >= 0; i-- {
		if err := l.links[i].link.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing %s link: %w", l.links[i].name, err))
		}
	}
	l.links = nil

	l.coll.Close()

	if len(errs) > 0 {
		return fmt.Errorf("errors during cleanup: %w", errors.Join(errs...))
	}
	return nil
}
