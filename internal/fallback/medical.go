package fallback

import (
	"fmt"
	"strings"

	"healthflow/internal/core"
)

// MedicalReport lists movement constraints derived from a medical profile.
type MedicalReport struct {
	Avoid           []string `json:"avoid"`
	Safe            []string `json:"safe"`
	Progression     []string `json:"progression"`
	MedicationNotes []string `json:"medication_considerations"`
	Narrative       string   `json:"-"`
}

var (
	aclEarly = []string{
		"NO running, jumping, or pivoting movements",
		"NO deep squats (below 90°)",
		"NO lateral movements",
	}
	aclMid = []string{
		"Avoid pivoting/twisting movements",
		"No jumping/plyometrics",
		"Limit deep squats",
	}
	aclLate = []string{
		"Can progress to sport-specific movements with clearance",
		"Monitor for any instability",
	}
	pivotBans = []string{
		"No rotational exercises (Russian twists, wood chops)",
		"No lateral lunges or side-to-side movements",
	}
	jumpBans = []string{
		"No plyometric exercises",
		"No box jumps, burpees, or jump squats",
	}
	aclControlledSafe = []string{
		"Upper body exercises (all variations)",
		"Core stability work (planks, dead bugs, bird dogs)",
		"Controlled lower body: leg press, hamstring curls, quad extensions",
		"Single-leg balance work (static, no movement)",
	}
	genericSafe = []string{
		"Upper body training (push, pull, press movements)",
		"Core exercises (anti-rotation focus)",
		"Cardio: stationary bike, swimming (if cleared)",
	}
	warfarinNotes = []string{
		"Warfarin: Avoid contact sports, minimize fall risk",
		"Use controlled environments for all exercises",
	}
)

// Medical derives avoid/safe lists from surgery type, weeks post-op,
// free-text restrictions and medications.
func Medical(p core.MedicalProfile) MedicalReport {
	weeks := p.Weeks()
	isACL := strings.Contains(strings.ToUpper(p.Surgery), "ACL")

	avoid := []string{}
	if isACL {
		switch {
		case weeks < 6:
			avoid = append(avoid, aclEarly...)
		case weeks < 12:
			avoid = append(avoid, aclMid...)
		default:
			avoid = append(avoid, aclLate...)
		}
	}
	for _, restriction := range p.Restrictions {
		lower := strings.ToLower(restriction)
		if strings.Contains(lower, "pivot") {
			avoid = append(avoid, pivotBans...)
		}
		if strings.Contains(lower, "jump") {
			avoid = append(avoid, jumpBans...)
		}
	}

	var safe []string
	if isACL && weeks >= 8 {
		safe = append(safe, aclControlledSafe...)
	} else {
		safe = append(safe, genericSafe...)
	}

	progression := []string{
		fmt.Sprintf("Week %d: Conservative approach, focus on controlled movements", weeks),
		"Can progress load by 5-10% per week if no pain/swelling",
		"Full clearance typically at 6-9 months for return to sport",
	}

	notes := []string{}
	for _, med := range p.Medications {
		if strings.Contains(strings.ToLower(med), "warfarin") {
			notes = append(notes, warfarinNotes...)
		}
	}

	report := MedicalReport{
		Avoid:           avoid,
		Safe:            safe,
		Progression:     progression,
		MedicationNotes: notes,
	}
	report.Narrative = renderMedical(p, weeks, report)
	return report
}

// ConstraintSummary joins the avoid list into the text form the workout engine reads.
func (r MedicalReport) ConstraintSummary() string {
	return strings.Join(r.Avoid, "\n")
}

func renderMedical(p core.MedicalProfile, weeks int, rep MedicalReport) string {
	var b strings.Builder

	fmt.Fprintf(&b, "\nMEDICAL CONSTRAINT ANALYSIS\nSurgery: %s\nTimeline: Week %d post-operation\n\n", p.Surgery, weeks)
	fmt.Fprintf(&b, "REASONING:\nBased on standard post-surgical protocols for %s at %d weeks:\n\n", p.Surgery, weeks)

	b.WriteString("MOVEMENTS TO AVOID:\n")
	writeBullets(&b, rep.Avoid)

	b.WriteString("\nSAFE EXERCISES:\n")
	writeBullets(&b, rep.Safe)

	b.WriteString("\nPROGRESSION GUIDELINES:\n")
	writeBullets(&b, rep.Progression)

	if len(rep.MedicationNotes) > 0 {
		b.WriteString("\nMEDICATION CONSIDERATIONS:\n")
		writeBullets(&b, rep.MedicationNotes)
	}

	b.WriteString("\n[Note: This is rule-based extraction. Always consult with your physician/PT for clearance]")
	return b.String()
}
