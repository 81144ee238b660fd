package certgen

import "fmt"

// QualifiedStatus is the only status cell value that marks a student as qualified.
// Matching is exact and case-sensitive after trimming.
const QualifiedStatus = "Qualified"

// StudentRecord is one roster row.
type StudentRecord struct {
	Name      string // trimmed, never empty
	Qualified bool
}

func (r StudentRecord) String() string {
	return fmt.Sprintf("Name: %q, Qualified: %t", r.Name, r.Qualified)
}

// NewStudentRecord builds a record from raw cell values. The status is trimmed
// before comparison; an empty status is simply not qualified.
func NewStudentRecord(name, status string) StudentRecord {
	return StudentRecord{
		Name:      trimSpace(name),
		Qualified: IsQualified(status),
	}
}

// IsQualified reports whether a raw status cell value means "qualified".
func IsQualified(status string) bool {
	return trimSpace(status) == QualifiedStatus
}

// RenderedCertificate is the finished single-page PDF for one student.
type RenderedCertificate struct {
	StudentName string
	Qualified   bool // used for folder labels only
	Bytes       []byte
}

func (c RenderedCertificate) String() string {
	return fmt.Sprintf("StudentName: %q, Qualified: %t, Bytes: %d", c.StudentName, c.Qualified, len(c.Bytes))
}

// Group returns the label of the folder this certificate belongs to.
func (c RenderedCertificate) Group() string {
	if c.Qualified {
		return GroupQualified
	}
	return GroupNotQualified
}

// Folder labels for the two outcome groups.
const (
	GroupQualified    = "Qualified"
	GroupNotQualified = "Not_Qualified"
)
