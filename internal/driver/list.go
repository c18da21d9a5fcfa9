package driver

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/cmec-driver/internal/cmecerr"
	"github.com/kingrea/cmec-driver/internal/descriptor"
	"github.com/kingrea/cmec-driver/internal/library"
)

var (
	listHeaderStyle = lipgloss.NewStyle().Bold(true)
	listMutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	listRule        = strings.Repeat("-", 60)
)

// List prints the registered modules with their configuration counts. With
// all set, every configuration of a multi-configuration module is listed.
func (d *Driver) List(all bool) error {
	lib, err := d.openLibrary()
	if err != nil {
		return err
	}
	if lib.Size() == 0 {
		return cmecerr.New(cmecerr.KindLibraryEmpty, "CMEC library contains no modules")
	}
	fmt.Fprintln(d.out, listHeaderStyle.Render(fmt.Sprintf("CMEC library contains %d modules", lib.Size())))
	fmt.Fprintln(d.out, listRule)
	for _, name := range lib.Names() {
		for _, line := range d.describe(lib, name, all) {
			fmt.Fprintln(d.out, line)
		}
	}
	fmt.Fprintln(d.out, listRule)
	return nil
}

func (d *Driver) describe(lib *library.Library, name string, all bool) []string {
	suffix := ""
	if lib.IsSpecialized(name) {
		suffix = " " + listMutedStyle.Render("(mdtf)")
	}
	desc, err := descriptor.Open(lib.Find(name), descriptor.WithLogger(d.logger))
	if err != nil {
		d.logger.Warn("Could not read module descriptor", "module", name, "err", err)
		return []string{fmt.Sprintf(" %s [unreadable]%s", name, suffix)}
	}
	contents, ok := desc.(*descriptor.Contents)
	if !ok {
		return []string{fmt.Sprintf(" %s [1 configuration]%s", name, suffix)}
	}
	lines := []string{fmt.Sprintf(" %s [%d configurations]%s", name, contents.Size(), suffix)}
	if all {
		for _, c := range contents.Configurations() {
			lines = append(lines, "    "+name+"/"+c.Name)
		}
	}
	return lines
}
