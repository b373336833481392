package linker

import (
	"fmt"
)

// ReadFile classifies f's contents and routes it to ObjectParser or
// SharedParser, appending the result to ctx.Objs / ctx.Shared. Archive
// members are out of scope (see ReadInputFiles); an ar archive here is
// reported as ErrUnsupportedFormat.
func ReadFile(ctx *Context, f *MappedFile) error {
	if len(f.Contents) >= len(arMagic) && string(f.Contents[:len(arMagic)]) == arMagic {
		return fmt.Errorf("%s: %w: archive demultiplexing is not part of this core", f.Name, ErrUnsupportedFormat)
	}

	view, err := NewElfView(f.Contents)
	if err != nil {
		return fmt.Errorf("%s: %w", f.Name, err)
	}

	switch elfType(view.EType()) {
	case etRel:
		obj, err := NewObjectParser(ctx, f, view).Parse()
		if err != nil {
			return fmt.Errorf("%s: %w", f.Name, err)
		}
		ctx.Objs = append(ctx.Objs, obj)
		return nil
	case etDyn:
		shared, err := NewSharedParser(ctx, f, view).Parse()
		if err != nil {
			return fmt.Errorf("%s: %w", f.Name, err)
		}
		ctx.Shared = append(ctx.Shared, shared)
		return nil
	default:
		return fmt.Errorf("%s: %w: e_type %d is neither ET_REL nor ET_DYN", f.Name, ErrUnsupportedFormat, view.EType())
	}
}

type elfType uint16

const (
	etRel elfType = 1
	etDyn elfType = 3
)
