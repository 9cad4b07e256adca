package genotype

// PopEntity pairs an exclusively owned genotype with its fitness.
type PopEntity struct {
	Genotype *Genotype
	Fitness  float64
}

func NewEntity(length int) *PopEntity {
	return &PopEntity{Genotype: New(length)}
}

// Clone returns an entity with an independent copy of the genotype.
func (e *PopEntity) Clone() *PopEntity {
	if e == nil {
		return nil
	}
	return &PopEntity{Genotype: e.Genotype.Copy(), Fitness: e.Fitness}
}

func CloneAll(entities []*PopEntity) []*PopEntity {
	out := make([]*PopEntity, len(entities))
	for i, e := range entities {
		out[i] = e.Clone()
	}
	return out
}
