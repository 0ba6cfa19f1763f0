package wizard

import "github.com/dharsanguruparan/DogLicense/internal/model"

// Step is a 1-based wizard page.
type Step int

const (
	StepOwner Step = iota + 1
	StepDog
	StepVaccination
	StepReview

	FirstStep = StepOwner
	LastStep  = StepReview
)

var stepFields = map[Step][]model.Field{
	StepOwner:       {model.FieldOwnerName, model.FieldOwnerAddress, model.FieldOwnerPhone},
	StepDog:         {model.FieldDogName, model.FieldDogBreed, model.FieldDogAge, model.FieldDogColor},
	StepVaccination: {model.FieldLastRabiesShot, model.FieldCertificate},
}

// Fields returns the fields owned by the step. The review step owns none.
func (s Step) Fields() []model.Field {
	return append([]model.Field(nil), stepFields[s]...)
}

func (s Step) String() string {
	switch s {
	case StepOwner:
		return "owner"
	case StepDog:
		return "dog"
	case StepVaccination:
		return "vaccination"
	case StepReview:
		return "review"
	}
	return "unknown"
}

func clamp(s Step) Step {
	if s < FirstStep {
		return FirstStep
	}
	if s > LastStep {
		return LastStep
	}
	return s
}

// AllFields lists every validated field in form order.
func AllFields() []model.Field {
	var out []model.Field
	for s := FirstStep; s <= LastStep; s++ {
		out = append(out, stepFields[s]...)
	}
	return out
}
