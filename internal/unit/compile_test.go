package unit

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

// chtemp switches into a fresh temp dir for the duration of the test, so
// that relative src/ and build/ paths behave as in a real project.
func chtemp(t *testing.T) {
	t.Helper()
	tmp, err := ioutil.TempDir("", "nob-unit")
	if err != nil {
		t.Fatal(err)
	}
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(tmp); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		os.Chdir(wd)
		os.RemoveAll(tmp)
	})
}

func write(t *testing.T, path, content string, mtime time.Time) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := ioutil.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatal(err)
	}
}

var base = time.Now().Add(-time.Hour).Truncate(time.Second)

func singleExe(t *testing.T) *Unit {
	t.Helper()
	write(t, "src/main.cpp", "int main() {}\n", base)
	top := New("", filepath.Join("build", "out"))
	top.AddDep(New("src/main.cpp", filepath.Join("build", "main.o")))
	return top
}

func TestCompileSingleExe(t *testing.T) {
	chtemp(t)
	top := singleExe(t)

	p, err := top.Compile(false)
	if err != nil {
		t.Fatal(err)
	}
	if p.Len() != 2 {
		t.Fatalf("plan has %d nodes, want 2", p.Len())
	}
	cc := p.Cmd(0)
	if cc.Command != "c++" {
		t.Errorf("compile command = %q, want c++", cc.Command)
	}
	if !cc.IsCompile {
		t.Error("compile node not marked IsCompile")
	}
	wantArgs := []string{"-MMD", "-c", "-o", "build/main.o", "src/main.cpp"}
	if diff := cmp.Diff(wantArgs, cc.Args); diff != "" {
		t.Errorf("compile args: diff (-want +got):\n%s", diff)
	}
	link := p.Cmd(1)
	if link.IsCompile {
		t.Error("link node marked IsCompile")
	}
	if diff := cmp.Diff([]string{"-o", "build/out", "build/main.o"}, link.Args); diff != "" {
		t.Errorf("link args: diff (-want +got):\n%s", diff)
	}
	if got := p.InDegree(1); got != 1 {
		t.Fatalf("link in-degree = %d, want 1", got)
	}
	if !cc.Enabled || !link.Enabled {
		t.Fatal("fresh tree: both nodes must be enabled")
	}

	// Pretend the build ran: objects newer than sources.
	write(t, "build/main.o", "obj", base.Add(time.Minute))
	write(t, "build/out", "exe", base.Add(2*time.Minute))

	p, err = top.Compile(false)
	if err != nil {
		t.Fatal(err)
	}
	if p.Cmd(0).Enabled || p.Cmd(1).Enabled {
		t.Fatal("up-to-date tree: both nodes must be disabled")
	}
}

func TestCompileHeaderTriggersRebuild(t *testing.T) {
	chtemp(t)
	top := singleExe(t)
	write(t, "src/a.hpp", "#pragma once\n", base)
	top.Children()[0].AddDep(New("src/a.hpp", ""))
	write(t, "build/main.o", "obj", base.Add(time.Minute))
	write(t, "build/out", "exe", base.Add(2*time.Minute))

	p, err := top.Compile(false)
	if err != nil {
		t.Fatal(err)
	}
	if p.Cmd(0).Enabled || p.Cmd(1).Enabled {
		t.Fatal("up-to-date tree: both nodes must be disabled")
	}

	// A touched header re-enables the object and, transitively, the link.
	if err := os.Chtimes("src/a.hpp", base.Add(3*time.Minute), base.Add(3*time.Minute)); err != nil {
		t.Fatal(err)
	}
	p, err = top.Compile(false)
	if err != nil {
		t.Fatal(err)
	}
	if !p.Cmd(0).Enabled {
		t.Fatal("touched header: compile node must be enabled")
	}
	if !p.Cmd(1).Enabled {
		t.Fatal("touched header: link node must be enabled transitively")
	}
}

func TestCompileMissingHeaderForcesRebuild(t *testing.T) {
	chtemp(t)
	top := singleExe(t)
	top.Children()[0].AddDep(New("src/deleted.hpp", ""))
	write(t, "build/main.o", "obj", base.Add(time.Minute))
	write(t, "build/out", "exe", base.Add(2*time.Minute))

	p, err := top.Compile(false)
	if err != nil {
		t.Fatal(err)
	}
	if !p.Cmd(0).Enabled {
		t.Fatal("missing header: compile node must be enabled")
	}
}

func TestCompileStaleObjectEnablesLink(t *testing.T) {
	chtemp(t)
	top := singleExe(t)
	// Object newer than the executable, but source older than the object.
	write(t, "build/main.o", "obj", base.Add(3*time.Minute))
	write(t, "build/out", "exe", base.Add(2*time.Minute))

	p, err := top.Compile(false)
	if err != nil {
		t.Fatal(err)
	}
	if p.Cmd(0).Enabled {
		t.Fatal("fresh object: compile node must be disabled")
	}
	if !p.Cmd(1).Enabled {
		t.Fatal("object newer than executable: link node must be enabled")
	}
}

func TestCompileFullRebuild(t *testing.T) {
	chtemp(t)
	top := singleExe(t)
	write(t, "build/main.o", "obj", base.Add(time.Minute))
	write(t, "build/out", "exe", base.Add(2*time.Minute))

	p, err := top.Compile(true)
	if err != nil {
		t.Fatal(err)
	}
	if !p.Cmd(0).Enabled || !p.Cmd(1).Enabled {
		t.Fatal("full rebuild: every node must be enabled")
	}
}

func TestCompileStaticLib(t *testing.T) {
	chtemp(t)
	write(t, "src/x1.cpp", "int a;\n", base)
	write(t, "src/x2.cpp", "int b;\n", base)
	top := New("", filepath.Join("build", "libx.a"))
	top.AddLinkFlag("-lm") // must not appear in the archive command
	top.AddDep(New("src/x1.cpp", filepath.Join("build", "x1.o")))
	top.AddDep(New("src/x2.cpp", filepath.Join("build", "x2.o")))

	p, err := top.Compile(false)
	if err != nil {
		t.Fatal(err)
	}
	ar := p.Cmd(2)
	if ar.Command != "ar" {
		t.Fatalf("archive command = %q, want ar", ar.Command)
	}
	want := []string{"rcs", "build/libx.a", "build/x1.o", "build/x2.o"}
	if diff := cmp.Diff(want, ar.Args); diff != "" {
		t.Fatalf("archive args: diff (-want +got):\n%s", diff)
	}
	if got := p.InDegree(2); got != 2 {
		t.Fatalf("archive in-degree = %d, want 2", got)
	}
}

func TestCompileDynamicLibPIC(t *testing.T) {
	chtemp(t)
	write(t, "src/y.cpp", "int y;\n", base)
	top := New("", filepath.Join("build", "liby.so"))
	top.AddCompileFlags("-O2")
	top.AddLinkFlag("-lm")
	top.AddDep(New("src/y.cpp", filepath.Join("build", "y.o")))

	p, err := top.Compile(false)
	if err != nil {
		t.Fatal(err)
	}
	cc := p.Cmd(0)
	want := []string{"-fPIC", "-O2", "-MMD", "-c", "-o", "build/y.o", "src/y.cpp"}
	if diff := cmp.Diff(want, cc.Args); diff != "" {
		t.Fatalf("compile args: diff (-want +got):\n%s", diff)
	}
	link := p.Cmd(1)
	wantLink := []string{"-shared", "-lm", "-o", "build/liby.so", "build/y.o"}
	if diff := cmp.Diff(wantLink, link.Args); diff != "" {
		t.Fatalf("link args: diff (-want +got):\n%s", diff)
	}
}

func TestCompileFlagInheritanceOrder(t *testing.T) {
	chtemp(t)
	write(t, "src/main.cpp", "int main() {}\n", base)
	top := New("", filepath.Join("build", "out"))
	top.AddCompileFlags("-Wall", "-Wall") // duplicates are preserved
	mid := New("", "")
	mid.AddCompileFlag("-O2")
	cu := New("src/main.cpp", filepath.Join("build", "main.o"))
	cu.AddCompileFlag("-DLOCAL")
	mid.AddDep(cu)
	top.AddDep(mid)

	p, err := top.Compile(false)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"-Wall", "-Wall", "-O2", "-DLOCAL", "-MMD", "-c", "-o", "build/main.o", "src/main.cpp"}
	if diff := cmp.Diff(want, p.Cmd(0).Args); diff != "" {
		t.Fatalf("compile args: diff (-want +got):\n%s", diff)
	}
}

func TestCompileMissingSource(t *testing.T) {
	chtemp(t)
	top := New("", filepath.Join("build", "out"))
	top.AddDep(New("src/missing.cpp", filepath.Join("build", "missing.o")))
	if _, err := top.Compile(false); err == nil {
		t.Fatal("Compile succeeded despite a missing source file")
	}
}

func TestCompileUnsupportedLinkKind(t *testing.T) {
	chtemp(t)
	top := New("", filepath.Join("build", "data.txt"))
	if _, err := top.Compile(false); err == nil {
		t.Fatal("Compile succeeded for a link unit of kind none")
	}
}

func TestCompileCreatesTargetDir(t *testing.T) {
	chtemp(t)
	write(t, "src/sub/a.cpp", "int a;\n", base)
	top := New("", filepath.Join("build", "out"))
	top.AddDep(New("src/sub/a.cpp", filepath.Join("build", "sub", "a.o")))
	if _, err := top.Compile(false); err != nil {
		t.Fatal(err)
	}
	fi, err := os.Stat(filepath.Join("build", "sub"))
	if err != nil {
		t.Fatal(err)
	}
	if !fi.IsDir() {
		t.Fatal("build/sub is not a directory")
	}
}
