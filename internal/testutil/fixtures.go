package testutil

import "github.com/roach88/sqlsynth/internal/ir"

// Shared example data. Every function returns a fresh copy, so callers may
// mutate the result.

// TableT is a two-column integer table:
//
//	a | b
//	1 | 2
//	3 | 4
func TableT() ir.Relation {
	return ir.Relation{
		Name:    "T",
		Columns: []ir.Column{{Name: "a", Type: ir.TypeInt}, {Name: "b", Type: ir.TypeInt}},
		Rows:    [][]ir.Value{{ir.Int(1), ir.Int(2)}, {ir.Int(3), ir.Int(4)}},
	}
}

// ProjectionExample maps T to its column a.
func ProjectionExample() ir.Example {
	return ir.Example{
		Input: ir.NewDatabase(TableT()),
		Output: ir.Relation{
			Columns: []ir.Column{{Name: "a", Type: ir.TypeInt}},
			Rows:    [][]ir.Value{{ir.Int(3)}, {ir.Int(1)}},
		},
	}
}

// FilterExample maps T to its second row.
func FilterExample() ir.Example {
	return ir.Example{
		Input: ir.NewDatabase(TableT()),
		Output: ir.Relation{
			Columns: []ir.Column{{Name: "a", Type: ir.TypeInt}, {Name: "b", Type: ir.TypeInt}},
			Rows:    [][]ir.Value{{ir.Int(3), ir.Int(4)}},
		},
	}
}

// Student is the student table of the student/department database.
func Student() ir.Relation {
	return ir.Relation{
		Name: "student",
		Columns: []ir.Column{
			{Name: "id", Type: ir.TypeInt},
			{Name: "name", Type: ir.TypeText},
			{Name: "department_id", Type: ir.TypeInt},
		},
		Rows: [][]ir.Value{
			{ir.Int(1), ir.Text("Mike"), ir.Int(1)},
			{ir.Int(2), ir.Text("Sam"), ir.Int(1)},
			{ir.Int(3), ir.Text("Drew"), ir.Int(2)},
			{ir.Int(4), ir.Text("Jane"), ir.Int(2)},
			{ir.Int(5), ir.Text("Shaw"), ir.Int(2)},
			{ir.Int(6), ir.Text("Mike"), ir.Int(2)},
		},
	}
}

// Department is the department table of the student/department database.
func Department() ir.Relation {
	return ir.Relation{
		Name: "department",
		Columns: []ir.Column{
			{Name: "id", Type: ir.TypeInt},
			{Name: "name", Type: ir.TypeText},
			{Name: "funding", Type: ir.TypeInt},
		},
		Rows: [][]ir.Value{
			{ir.Int(1), ir.Text("Chemistry"), ir.Int(100000)},
			{ir.Int(2), ir.Text("CompSci"), ir.Int(53243)},
			{ir.Int(3), ir.Text("Physics"), ir.Int(900000)},
		},
	}
}

// StudentDepartment is the two-table database used by the shipped example
// problems.
func StudentDepartment() ir.Database {
	return ir.NewDatabase(Student(), Department())
}

// CompSciStudents maps StudentDepartment to the names of students in
// department 2.
func CompSciStudents() ir.Example {
	return ir.Example{
		Input: StudentDepartment(),
		Output: ir.Relation{
			Columns: []ir.Column{{Name: "name", Type: ir.TypeText}},
			Rows: [][]ir.Value{
				{ir.Text("Drew")}, {ir.Text("Jane")}, {ir.Text("Shaw")}, {ir.Text("Mike")},
			},
		},
	}
}

// Emp assigns three employees to departments 1 and 2.
func Emp() ir.Relation {
	return ir.Relation{
		Name:    "emp",
		Columns: []ir.Column{{Name: "dept", Type: ir.TypeInt}, {Name: "name", Type: ir.TypeText}},
		Rows: [][]ir.Value{
			{ir.Int(1), ir.Text("ann")},
			{ir.Int(1), ir.Text("bob")},
			{ir.Int(2), ir.Text("cy")},
		},
	}
}

// Dept lists three departments. Department 3 has no employees.
func Dept() ir.Relation {
	return ir.Relation{
		Name:    "dept",
		Columns: []ir.Column{{Name: "id", Type: ir.TypeInt}, {Name: "title", Type: ir.TypeText}},
		Rows: [][]ir.Value{
			{ir.Int(1), ir.Text("eng")},
			{ir.Int(2), ir.Text("ops")},
			{ir.Int(3), ir.Text("hr")},
		},
	}
}

// Headcount maps emp and dept to the employee count of every staffed
// department. It needs a join, GROUP BY and COUNT.
func Headcount() ir.Example {
	return ir.Example{
		Input: ir.NewDatabase(Emp(), Dept()),
		Output: ir.Relation{
			Columns: []ir.Column{{Name: "title", Type: ir.TypeText}, {Name: "n", Type: ir.TypeInt}},
			Rows: [][]ir.Value{
				{ir.Text("eng"), ir.Int(2)},
				{ir.Text("ops"), ir.Int(1)},
			},
		},
	}
}

// FullHeadcount is Headcount including empty departments, which only a
// LEFT JOIN from dept with COUNT over an emp column produces.
func FullHeadcount() ir.Example {
	ex := Headcount()
	ex.Output.Rows = append(ex.Output.Rows, []ir.Value{ir.Text("hr"), ir.Int(0)})
	return ex
}
