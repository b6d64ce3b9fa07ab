package formulas

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

type memoryRepo struct {
	formulas    map[int64]Formula
	ingredients map[int64]Ingredient
	lots        map[int64]string
	products    map[int64]int
	nextID      int64
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		formulas:    map[int64]Formula{},
		ingredients: map[int64]Ingredient{},
		lots:        map[int64]string{},
		products:    map[int64]int{},
	}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	formulas := make(map[int64]Formula, len(r.formulas))
	for k, v := range r.formulas {
		formulas[k] = v
	}
	ingredients := make(map[int64]Ingredient, len(r.ingredients))
	for k, v := range r.ingredients {
		ingredients[k] = v
	}
	if err := fn(ctx, &memoryTx{repo: r}); err != nil {
		r.formulas, r.ingredients = formulas, ingredients
		return err
	}
	return nil
}

func (r *memoryRepo) Get(_ context.Context, id int64) (Formula, error) {
	f, ok := r.formulas[id]
	if !ok {
		return Formula{}, fmt.Errorf("%w: id %d", ErrFormulaNotFound, id)
	}
	return f, nil
}

func (r *memoryRepo) List(_ context.Context, search string) ([]Formula, error) {
	var out []Formula
	for _, f := range r.formulas {
		if search == "" || strings.Contains(strings.ToLower(f.Name), strings.ToLower(search)) {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memoryRepo) Ingredients(_ context.Context, formulaID int64) ([]Ingredient, error) {
	var out []Ingredient
	for _, ing := range r.ingredients {
		if ing.FormulaID == formulaID {
			ing.LotNumber = r.lots[ing.LotID]
			out = append(out, ing)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *memoryTx) GetForUpdate(ctx context.Context, id int64) (Formula, error) {
	return t.repo.Get(ctx, id)
}

func (t *memoryTx) Insert(_ context.Context, f Formula) (Formula, error) {
	t.repo.nextID++
	f.ID = t.repo.nextID
	t.repo.formulas[f.ID] = f
	return f, nil
}

func (t *memoryTx) Update(_ context.Context, f Formula) (Formula, error) {
	t.repo.formulas[f.ID] = f
	return f, nil
}

func (t *memoryTx) Delete(_ context.Context, id int64) error {
	delete(t.repo.formulas, id)
	for k, ing := range t.repo.ingredients {
		if ing.FormulaID == id {
			delete(t.repo.ingredients, k)
		}
	}
	return nil
}

func (t *memoryTx) CountProducts(_ context.Context, formulaID int64) (int, error) {
	return t.repo.products[formulaID], nil
}

func (t *memoryTx) LotExists(_ context.Context, lotID int64) (bool, error) {
	_, ok := t.repo.lots[lotID]
	return ok, nil
}

func (t *memoryTx) InsertIngredient(_ context.Context, ing Ingredient) (Ingredient, error) {
	t.repo.nextID++
	ing.ID = t.repo.nextID
	t.repo.ingredients[ing.ID] = ing
	return ing, nil
}

func (t *memoryTx) DeleteIngredient(_ context.Context, formulaID, ingredientID int64) error {
	ing, ok := t.repo.ingredients[ingredientID]
	if !ok || ing.FormulaID != formulaID {
		return fmt.Errorf("%w: id %d", ErrIngredientNotFound, ingredientID)
	}
	delete(t.repo.ingredients, ingredientID)
	return nil
}
