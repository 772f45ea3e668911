package domain

// Domains is the fixed set of internship specializations, in display order.
var Domains = []string{
	"Python Development",
	"Web Development",
	"Mobile App Development",
	"Data Science",
	"Machine Learning",
	"UI/UX Design",
	"Digital Marketing",
	"Content Writing",
	"Graphic Design",
	"Cybersecurity",
	"Cloud Computing",
	"DevOps",
	"Blockchain Development",
	"Game Development",
	"IoT Development",
}

// Qualifications accepted at registration.
var Qualifications = []string{
	"High School", "Diploma", "BTech", "MTech", "BCA", "MCA", "BSc", "MSc", "BBA", "MBA", "Other",
}

// IsValidDomain reports whether name is one of Domains.
func IsValidDomain(name string) bool {
	return contains(Domains, name)
}

// IsValidQualification reports whether q is one of Qualifications.
func IsValidQualification(q string) bool {
	return contains(Qualifications, q)
}

// AvailableDomains returns Domains minus the registered ones, order kept.
func AvailableDomains(registered []string) []string {
	available := make([]string, 0, len(Domains))
	for _, d := range Domains {
		if !contains(registered, d) {
			available = append(available, d)
		}
	}
	return available
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
