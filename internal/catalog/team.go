package catalog

import "fmt"

var regions = []string{"APAC", "EMEA", "NAM", "WAM"}

// GenerateEmployees builds a synthetic roster of count engineers. Regions rotate
// and every fifth engineer is on leave.
func GenerateEmployees(count int, rolePrefix string) []Employee {
	out := make([]Employee, 0, count)
	for i := 0; i < count; i++ {
		status := "Active"
		if i%5 == 0 {
			status = "Leave"
		}
		out = append(out, Employee{
			ID:     fmt.Sprintf("emp-%s-%d", rolePrefix, i),
			Name:   fmt.Sprintf("Engineer %s %d", rolePrefix, i+1),
			Role:   rolePrefix + " Specialist",
			Region: regions[i%len(regions)],
			Status: status,
		})
	}
	return out
}
