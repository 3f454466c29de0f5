package diag

import "fmt"

// Loc points into an application source file. Line and Col are 1-based;
// zero means "unknown" (bundler messages do not always carry positions).
type Loc struct {
	File string
	Line int
	Col  int
}

func (l Loc) IsZero() bool {
	return l.File == "" && l.Line == 0 && l.Col == 0
}

func (l Loc) String() string {
	switch {
	case l.File == "":
		return ""
	case l.Line == 0:
		return l.File
	case l.Col == 0:
		return fmt.Sprintf("%s:%d", l.File, l.Line)
	}
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Col)
}

type Note struct {
	Loc Loc
	Msg string
}

type Diagnostic struct {
	Severity Severity
	Code     Code
	Message  string
	Primary  Loc
	Notes    []Note
}

func New(sev Severity, code Code, primary Loc, msg string) Diagnostic {
	return Diagnostic{
		Severity: sev,
		Code:     code,
		Primary:  primary,
		Message:  msg,
	}
}

func NewError(code Code, primary Loc, msg string) Diagnostic {
	return New(SevError, code, primary, msg)
}

func NewWarning(code Code, primary Loc, msg string) Diagnostic {
	return New(SevWarning, code, primary, msg)
}

func (d Diagnostic) WithNote(loc Loc, msg string) Diagnostic {
	d.Notes = append(d.Notes, Note{Loc: loc, Msg: msg})
	return d
}
