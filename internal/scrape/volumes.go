package scrape

import "fmt"

// Volume is one top-level volume of the policy manual.
type Volume struct {
	Number int
	Title  string
}

// Volumes returns the manual's volumes in order.
func Volumes() []Volume {
	return []Volume{
		{1, "General Policies and Procedures"},
		{2, "Nonimmigrants"},
		{3, "Humanitarian Protection and Parole"},
		{4, "Refugees and Asylees"},
		{5, "Adoptions"},
		{6, "Immigrants"},
		{7, "Adjustment of Status"},
		{8, "Admissibility"},
		{9, "Waivers and Other Forms of Relief"},
		{10, "Employment Authorization"},
		{11, "Travel and Identity Documents"},
		{12, "Citizenship and Naturalization"},
	}
}

// VolumeURL returns the landing page of volume n.
func VolumeURL(baseURL string, n int) string {
	return fmt.Sprintf("%s/policy-manual/volume-%d", baseURL, n)
}
