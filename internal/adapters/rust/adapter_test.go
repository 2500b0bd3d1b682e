package rustadapter

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1homsi/essence/internal/ir"
)

const unsafePtrSource = `// samples/unsafe_ptr.rs

pub fn unsafe_read(ptr: *const i32, offset: isize) -> i32 {
    unsafe {
        *ptr.offset(offset)
    }
}
`

func parse(t *testing.T, src string) []ir.Unit {
	t.Helper()
	units, err := (&Adapter{}).ParseSource(context.Background(), "test.rs", []byte(src))
	require.NoError(t, err)
	return units
}

func collectKinds(n *ir.Node) []string {
	var out []string
	n.Walk(func(n *ir.Node) bool {
		out = append(out, string(n.Kind)+":"+n.Op)
		return true
	})
	return out
}

func TestParseUnsafeReadFixture(t *testing.T) {
	units := parse(t, unsafePtrSource)
	require.Len(t, units, 1)

	u := units[0]
	assert.Equal(t, "unsafe_read", u.Name)
	assert.Equal(t, "rust", u.Language)
	assert.Equal(t, 3, u.Root.Span.StartLine)

	assert.Equal(t, []string{
		"Other:fn",
		"UnsafeRegionStart:unsafe",
		"MemoryDeref:*",
		"Call:offset",
		"UnsafeRegionEnd:",
	}, collectKinds(u.Root))

	_, err := ir.Build(u)
	assert.NoError(t, err)
}

func TestParseMethodsAndModules(t *testing.T) {
	units := parse(t, `
struct Buf { p: *mut u8 }

impl Buf {
    fn first(&self) -> u8 { unsafe { *self.p } }
}

mod raw {
    pub fn zero() {}
}
`)
	names := make([]string, 0, len(units))
	for _, u := range units {
		names = append(names, u.Name)
	}
	assert.Equal(t, []string{"Buf::first", "raw::zero"}, names)
}

func TestParseUnsafeFnBodyIsRegion(t *testing.T) {
	units := parse(t, `unsafe fn get(p: *const u8) -> u8 { *p }`)
	require.Len(t, units, 1)
	assert.Equal(t, []string{
		"Other:fn",
		"UnsafeRegionStart:unsafe fn",
		"MemoryDeref:*",
		"UnsafeRegionEnd:",
	}, collectKinds(units[0].Root))
}

func TestParseCastsAsmAndLoops(t *testing.T) {
	units := parse(t, `
fn mix(x: usize) {
    let p = x as *const u8;
    for i in 0..4 {
        std::thread::spawn(move || {});
    }
    unsafe { core::arch::asm!("nop"); }
}
`)
	require.Len(t, units, 1)
	kinds := collectKinds(units[0].Root)
	assert.Contains(t, kinds, "Cast:*const u8")
	assert.Contains(t, kinds, "ControlFlow:for")
	assert.Contains(t, kinds, "Call:std::thread::spawn")
	assert.Contains(t, kinds, "Call:asm")
}

func TestParseMacroArguments(t *testing.T) {
	units := parse(t, `pub fn f(p: *const i32) {
    println!("{}", unsafe { *p.offset(1) });
    assert_eq!(unsafe { *p }, 1);
    assert!(
        unsafe { *p } > 0
    );
}
`)
	require.Len(t, units, 1)
	assert.Equal(t, []string{
		"Other:fn",
		"UnsafeRegionStart:unsafe",
		"MemoryDeref:*",
		"Call:offset",
		"UnsafeRegionEnd:",
		"UnsafeRegionStart:unsafe",
		"MemoryDeref:*",
		"UnsafeRegionEnd:",
		"UnsafeRegionStart:unsafe",
		"MemoryDeref:*",
		"UnsafeRegionEnd:",
	}, collectKinds(units[0].Root))

	fn, err := ir.Build(units[0])
	require.NoError(t, err)

	var derefs []ir.Span
	fn.Walk(func(n *ir.Node) bool {
		if n.Kind == ir.MemoryDeref {
			derefs = append(derefs, n.Span)
		}
		return true
	})
	require.Len(t, derefs, 3)
	assert.Equal(t, 2, derefs[0].StartLine)
	assert.Equal(t, 29, derefs[0].StartCol)
	assert.Equal(t, 3, derefs[1].StartLine)
	assert.Equal(t, 25, derefs[1].StartCol)
	assert.Equal(t, 5, derefs[2].StartLine)
	assert.Equal(t, 18, derefs[2].StartCol)
}

func TestParseMacroWithoutExpressions(t *testing.T) {
	units := parse(t, `fn log() { println!("hello {}", 1); }`)
	require.Len(t, units, 1)
	assert.Equal(t, []string{"Other:fn"}, collectKinds(units[0].Root))
}

func TestLoadDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.rs"), []byte(unsafePtrSource), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("fn ignored() {}"), 0600))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "target"), 0700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "target", "gen.rs"), []byte("fn generated() {}"), 0600))

	units, err := (&Adapter{}).Load(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.Equal(t, filepath.Join(dir, "a.rs"), units[0].File)
}
