// pkg/env/doc.go
package env

/*
Package env abstracts the environment variables refdata reads and writes.

An installer never touches the process environment directly. It is handed a
Store and records every data path there, so callers choose where the values
end up:

  - NewMap keeps them in memory (tests, library use)
  - Process mirrors them into os.Environ for child processes
  - OpenFile persists them as JSON between runs
  - Overlay combines several stores, reading the first that has a value

A variable holding the empty string or the literal "***unset***" counts as
unset; Value applies that rule.

Basic Usage:

	store := env.NewMap(nil)
	installer := install.New(&install.Config{Env: store})
	report, err := installer.Install(ctx, doc)

	fmt.Print(env.ShellExports(report.Exports()))
	// export REFDATA='/home/me/data/pkg'
*/
