package benchmark

import (
	"fmt"
	"math"
	"math/rand"
	"strconv"
)

const (
	DefaultPassengers    = 891
	DefaultDiscrepancies = 143
)

// Passenger is one row of the original manifest.
type Passenger struct {
	PassengerID int64   `parquet:"passenger_id"`
	Survived    bool    `parquet:"survived"`
	Pclass      int64   `parquet:"pclass"`
	Name        string  `parquet:"name"`
	Sex         string  `parquet:"sex"`
	Age         float64 `parquet:"age"`
	Fare        float64 `parquet:"fare"`
}

func (Passenger) Header() []string {
	return []string{"passenger_id", "survived", "pclass", "name", "sex", "age", "fare"}
}

func (p Passenger) Record() []string {
	return []string{
		strconv.FormatInt(p.PassengerID, 10),
		strconv.FormatBool(p.Survived),
		strconv.FormatInt(p.Pclass, 10),
		p.Name,
		p.Sex,
		strconv.FormatFloat(p.Age, 'f', 1, 64),
		strconv.FormatFloat(p.Fare, 'f', 2, 64),
	}
}

// CorrectedPassenger is one row of the corrected manifest. Age holds the
// corrected value when IsAgeDiscrepancy is set.
type CorrectedPassenger struct {
	PassengerID      int64   `parquet:"passenger_id"`
	Survived         bool    `parquet:"survived"`
	Pclass           int64   `parquet:"pclass"`
	Name             string  `parquet:"name"`
	Sex              string  `parquet:"sex"`
	Age              float64 `parquet:"age"`
	Fare             float64 `parquet:"fare"`
	IsAgeDiscrepancy bool    `parquet:"is_age_discrepancy"`
}

func (CorrectedPassenger) Header() []string {
	return append(Passenger{}.Header(), "is_age_discrepancy")
}

func (p CorrectedPassenger) Record() []string {
	base := Passenger{
		PassengerID: p.PassengerID,
		Survived:    p.Survived,
		Pclass:      p.Pclass,
		Name:        p.Name,
		Sex:         p.Sex,
		Age:         p.Age,
		Fare:        p.Fare,
	}.Record()
	return append(base, strconv.FormatBool(p.IsAgeDiscrepancy))
}

// Dataset is a generated benchmark: the original manifest and its corrected
// copy, row-aligned by passenger id.
type Dataset struct {
	Original  []Passenger
	Corrected []CorrectedPassenger
}

// Discrepancies counts corrected rows flagged with an age discrepancy.
func (d Dataset) Discrepancies() int {
	count := 0
	for _, row := range d.Corrected {
		if row.IsAgeDiscrepancy {
			count++
		}
	}
	return count
}

// Generator produces deterministic passenger manifests from a seed.
type Generator struct {
	rnd *rand.Rand
}

func NewGenerator(seed int64) *Generator {
	return &Generator{rnd: rand.New(rand.NewSource(seed))}
}

// Generate builds passengers rows and flags exactly discrepancies of them.
func (g *Generator) Generate(passengers, discrepancies int) (Dataset, error) {
	if passengers <= 0 {
		return Dataset{}, fmt.Errorf("passengers must be > 0")
	}
	if discrepancies < 0 || discrepancies > passengers {
		return Dataset{}, fmt.Errorf("discrepancies must be between 0 and %d", passengers)
	}

	flagged := make(map[int]struct{}, discrepancies)
	for _, index := range g.rnd.Perm(passengers)[:discrepancies] {
		flagged[index] = struct{}{}
	}

	out := Dataset{
		Original:  make([]Passenger, 0, passengers),
		Corrected: make([]CorrectedPassenger, 0, passengers),
	}
	for i := 0; i < passengers; i++ {
		passenger := g.nextPassenger(int64(i + 1))
		corrected := CorrectedPassenger{
			PassengerID: passenger.PassengerID,
			Survived:    passenger.Survived,
			Pclass:      passenger.Pclass,
			Name:        passenger.Name,
			Sex:         passenger.Sex,
			Age:         passenger.Age,
			Fare:        passenger.Fare,
		}
		if _, ok := flagged[i]; ok {
			corrected.Age = g.correctAge(passenger.Age)
			corrected.IsAgeDiscrepancy = true
		}
		out.Original = append(out.Original, passenger)
		out.Corrected = append(out.Corrected, corrected)
	}
	return out, nil
}

func (g *Generator) nextPassenger(id int64) Passenger {
	pclass := g.pickClass()
	sex := "male"
	if g.rnd.Intn(100) < 35 {
		sex = "female"
	}
	title := "Mr."
	if sex == "female" {
		title = pickOne(g.rnd, []string{"Mrs.", "Miss."})
	}
	return Passenger{
		PassengerID: id,
		Survived:    g.survived(sex, pclass),
		Pclass:      pclass,
		Name: fmt.Sprintf("%s, %s %s",
			pickOne(g.rnd, surnames),
			title,
			pickOne(g.rnd, givenNames[sex]),
		),
		Sex:  sex,
		Age:  round1(0.5 + g.rnd.Float64()*79.5),
		Fare: g.pickFare(pclass),
	}
}

func (g *Generator) pickClass() int64 {
	p := g.rnd.Intn(100)
	switch {
	case p < 24:
		return 1
	case p < 45:
		return 2
	default:
		return 3
	}
}

func (g *Generator) survived(sex string, pclass int64) bool {
	chance := 19
	if sex == "female" {
		chance = 74
	}
	chance -= int(pclass-1) * 10
	return g.rnd.Intn(100) < chance
}

func (g *Generator) pickFare(pclass int64) float64 {
	switch pclass {
	case 1:
		return round2(25 + g.rnd.Float64()*485)
	case 2:
		return round2(10 + g.rnd.Float64()*63)
	default:
		return round2(4 + g.rnd.Float64()*65)
	}
}

// correctAge shifts age by one to ten years, staying positive.
func (g *Generator) correctAge(age float64) float64 {
	delta := float64(g.rnd.Intn(10) + 1)
	if age-delta > 0 && g.rnd.Intn(2) == 0 {
		return round1(age - delta)
	}
	return round1(age + delta)
}

func round1(value float64) float64 {
	return math.Round(value*10) / 10
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}

func pickOne(r *rand.Rand, values []string) string {
	return values[r.Intn(len(values))]
}

var surnames = []string{
	"Braund", "Cumings", "Heikkinen", "Futrelle", "Allen", "Moran", "McCarthy",
	"Palsson", "Johnson", "Nasser", "Sandstrom", "Bonnell", "Saundercock",
	"Andersson", "Vestrom", "Hewlett", "Rice", "Williams", "Vander Planke",
	"Masselmani", "Fynney", "Beesley", "McGowan", "Sloper", "Asplund",
}

var givenNames = map[string][]string{
	"male":   {"Owen", "William", "James", "Timothy", "Gosta", "Charles", "Lawrence", "Anders", "Joseph"},
	"female": {"Florence", "Laina", "Lily", "Elisabeth", "Marguerite", "Hulda", "Adele", "Anna", "Elizabeth"},
}
