package patchfile

import (
	"fmt"
	"io"

	"github.com/dave/jennifer/jen"
	"github.com/k2io/interpose"
)

const runtimePath = "github.com/k2io/interpose"

// raw renders s verbatim: hex addresses and type expressions taken from
// the description.
func raw(s string) jen.Code {
	return jen.Op(s)
}

func addr(v uint64) jen.Code {
	return raw(fmt.Sprintf("0x%08X", v))
}

func variantIdent(name string) string {
	v, _ := interpose.ParseVariant(name)
	if v == interpose.VariantA {
		return "VariantA"
	}
	return "VariantB"
}

func siteArgs(name string, s Sites) []jen.Code {
	return []jen.Code{jen.Lit(name), addr(s.A), addr(s.B)}
}

// Generate writes gofmt'd Go source declaring Builds, the bindings and
// PatchTable.
func (f *File) Generate(w io.Writer) error {
	out := jen.NewFile(f.Package)
	out.HeaderComment("Code generated by interpose gen. DO NOT EDIT.")

	out.Comment("Builds lists the host builds this patch table was made for.")
	out.Var().Id("Builds").Op("=").Qual(runtimePath, "Builds").Values(jen.DictFunc(func(d jen.Dict) {
		for _, b := range f.Builds {
			d[raw(fmt.Sprintf("0x%08X", b.Fingerprint))] = jen.Qual(runtimePath, variantIdent(b.Variant))
		}
	}))

	if len(f.Bindings) > 0 {
		out.Line()
		out.Var().DefsFunc(func(g *jen.Group) {
			for _, b := range f.Bindings {
				ctor := "Bind"
				if b.Func {
					ctor = "BindFunc"
				}
				g.Id(b.Ident).Op("=").Qual(runtimePath, ctor).Types(raw(b.Type)).Call(siteArgs(b.Name, b.Sites)...)
			}
		})
	}

	out.Line()
	out.Comment("PatchTable is applied once at attach.")
	out.Var().Id("PatchTable").Op("=").Qual(runtimePath, "PatchTable").ValuesFunc(func(g *jen.Group) {
		for _, h := range f.Hooks {
			g.Values(jen.Dict{
				jen.Id("Name"):        jen.Lit(h.Name),
				jen.Id("Site"):        jen.Qual(runtimePath, "Bind").Types(jen.Qual(runtimePath, "CallSite")).Call(siteArgs(h.Name, h.Sites)...),
				jen.Id("Replacement"): jen.Qual(runtimePath, "FuncAddr").Call(jen.Id(h.Replacement)),
				jen.Id("Opcode"):      raw(fmt.Sprintf("0x%02X", h.Opcode)),
			})
		}
	})

	if err := out.Render(w); err != nil {
		return fmt.Errorf("render generated source: %w", err)
	}
	return nil
}
