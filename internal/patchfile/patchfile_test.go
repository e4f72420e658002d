package patchfile

import (
	"bytes"
	"go/parser"
	"go/token"
	"strings"
	"testing"

	"github.com/k2io/interpose"
)

const sample = `
package = "patches"

[[build]]
variant = "a"
fingerprint = 0x0066D124

[[build]]
variant = "b"
fingerprint = 0x00720EBD

[[hook]]
name = "data_iterator_next"
replacement = "dataIteratorNext"
sites = { a = 0x004047FF, b = 0x00403AB2 }

[[hook]]
name = "game_in_editor"
replacement = "gameInEditor"
opcode = 0xE8
sites = { b = 0x00401000 }

[[binding]]
name = "global_object_marker"
ident = "GlobalObjectMarker"
type = "uint32"
sites = { a = 0x00DED5B4, b = 0x00EA4B74 }

[[binding]]
name = "object_get_and_verify_type"
ident = "ObjectGetAndVerifyType"
type = "func(uint32, uint32) uintptr"
func = true
sites = { a = 0x00401234 }
`

func TestParse(t *testing.T) {
	f, err := Parse([]byte(sample))
	if err != nil {
		t.Fatal(err)
	}
	if len(f.Hooks) != 2 || len(f.Bindings) != 2 {
		t.Fatalf("expected 2 hooks and 2 bindings - got %d and %d", len(f.Hooks), len(f.Bindings))
	}
	if f.Hooks[0].Opcode != interpose.OpcodeJump {
		t.Fatalf("expected default opcode 0xE9 - got 0x%02X", f.Hooks[0].Opcode)
	}
	if f.Hooks[1].Sites.For(interpose.VariantA) != 0 || f.Hooks[1].Sites.For(interpose.VariantB) != 0x00401000 {
		t.Fatalf("unexpected sites %+v", f.Hooks[1].Sites)
	}
	builds := f.BuildTable()
	if v, err := builds.Lookup(0x00720EBD); err != nil || v != interpose.VariantB {
		t.Fatalf("expected variant B - got %s, %v", v, err)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := map[string]string{
		"bad variant": "[[build]]\nvariant = \"c\"\nfingerprint = 1\n",
		"bad opcode":  "[[hook]]\nname = \"x\"\nreplacement = \"x\"\nopcode = 0x90\nsites = { a = 1 }\n",
		"no sites":    "[[hook]]\nname = \"x\"\nreplacement = \"x\"\n",
		"dup hook":    "[[hook]]\nname = \"x\"\nreplacement = \"x\"\nsites = { a = 1 }\n[[hook]]\nname = \"x\"\nreplacement = \"y\"\nsites = { a = 2 }\n",
		"bad ident":   "[[binding]]\nname = \"x\"\nident = \"not ok\"\ntype = \"uint32\"\n",
		"bad toml":    "[[hook\n",
	}
	for name, data := range tests {
		if _, err := Parse([]byte(data)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestGenerate(t *testing.T) {
	f, err := Parse([]byte(sample))
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := f.Generate(&buf); err != nil {
		t.Fatal(err)
	}
	src := buf.String()
	if _, err := parser.ParseFile(token.NewFileSet(), "zz_patchtable.go", src, 0); err != nil {
		t.Fatalf("generated source does not parse: %v\n%s", err, src)
	}
	for _, want := range []string{
		"// Code generated by interpose gen. DO NOT EDIT.",
		"package patches",
		"0x0066D124: interpose.VariantA,",
		`interpose.Bind[uint32]("global_object_marker", 0x00DED5B4, 0x00EA4B74)`,
		`interpose.BindFunc[func(uint32, uint32) uintptr]("object_get_and_verify_type", 0x00401234, 0x00000000)`,
		`interpose.Bind[interpose.CallSite]("data_iterator_next", 0x004047FF, 0x00403AB2)`,
		"interpose.FuncAddr(gameInEditor)",
		"0xE8",
	} {
		if !strings.Contains(src, want) {
			t.Fatalf("expected %q in generated source:\n%s", want, src)
		}
	}
}
