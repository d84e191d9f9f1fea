package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store owns catalog CRUD. Checkout reads the same tables under row locks
// through its own pgx store.
type Store struct {
	DB *gorm.DB
}

func (s *Store) ListCategories(ctx context.Context) ([]Category, error) {
	var out []Category
	err := s.DB.WithContext(ctx).Order("name").Find(&out).Error
	return out, err
}

func (s *Store) CreateCategory(ctx context.Context, name string) (*Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalid("name is required")
	}
	c := &Category{ID: uuid.NewString(), Name: name}
	if err := s.DB.WithContext(ctx).Create(c).Error; err != nil {
		return nil, translate(err, "category")
	}
	return c, nil
}

func (s *Store) RenameCategory(ctx context.Context, id, name string) (*Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalid("name is required")
	}
	if !isUUID(id) {
		return nil, fmt.Errorf("%w: category", ErrNotFound)
	}
	db := s.DB.WithContext(ctx)
	if err := notFoundIfNone(db.Model(&Category{}).Where("id = ?", id).Update("name", name), "category"); err != nil {
		return nil, err
	}
	var c Category
	if err := db.First(&c, "id = ?", id).Error; err != nil {
		return nil, translate(err, "category")
	}
	return &c, nil
}

// DeleteCategory leaves its products uncategorised.
func (s *Store) DeleteCategory(ctx context.Context, id string) error {
	if !isUUID(id) {
		return fmt.Errorf("%w: category", ErrNotFound)
	}
	return notFoundIfNone(s.DB.WithContext(ctx).Delete(&Category{}, "id = ?", id), "category")
}

type ProductQuery struct {
	Page       int
	PageSize   int
	Sort       string // name | price | stock | created
	Order      string // asc | desc
	CategoryID string
	Search     string
}

var sortColumns = map[string]string{
	"name":    "name",
	"price":   "price",
	"stock":   "stock",
	"created": "created_at",
}

func (q *ProductQuery) normalize() error {
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.PageSize <= 0 {
		q.PageSize = 20
	}
	if q.PageSize > 100 {
		q.PageSize = 100
	}
	if q.Sort == "" {
		q.Sort = "name"
	}
	if _, ok := sortColumns[q.Sort]; !ok {
		return invalid("unknown sort %q", q.Sort)
	}
	q.Order = strings.ToLower(q.Order)
	if q.Order == "" {
		q.Order = "asc"
	}
	if q.Order != "asc" && q.Order != "desc" {
		return invalid("order must be asc or desc")
	}
	if q.CategoryID != "" && !isUUID(q.CategoryID) {
		return invalid("categoryId must be a uuid")
	}
	return nil
}

func (s *Store) ListProducts(ctx context.Context, q ProductQuery) (Page[Product], error) {
	if err := q.normalize(); err != nil {
		return Page[Product]{}, err
	}
	filter := func(tx *gorm.DB) *gorm.DB {
		if q.CategoryID != "" {
			tx = tx.Where("category_id = ?", q.CategoryID)
		}
		if term := strings.TrimSpace(q.Search); term != "" {
			tx = tx.Where("name ILIKE ?", "%"+term+"%")
		}
		return tx
	}

	out := Page[Product]{Items: []Product{}, Page: q.Page, PageSize: q.PageSize}
	if err := s.DB.WithContext(ctx).Model(&Product{}).Scopes(filter).Count(&out.Total).Error; err != nil {
		return out, err
	}
	err := withOptions(s.DB.WithContext(ctx)).
		Scopes(filter).
		Order(clause.OrderByColumn{Column: clause.Column{Name: sortColumns[q.Sort]}, Desc: q.Order == "desc"}).
		Order("id").
		Limit(q.PageSize).
		Offset((q.Page - 1) * q.PageSize).
		Find(&out.Items).Error
	return out, err
}

func withOptions(tx *gorm.DB) *gorm.DB {
	return tx.Preload("Category").
		Preload("OptionGroups", func(tx *gorm.DB) *gorm.DB { return tx.Order("name") }).
		Preload("OptionGroups.Items", func(tx *gorm.DB) *gorm.DB { return tx.Order("name") })
}

func (s *Store) GetProduct(ctx context.Context, id string) (*Product, error) {
	if !isUUID(id) {
		return nil, fmt.Errorf("%w: product", ErrNotFound)
	}
	var p Product
	err := withOptions(s.DB.WithContext(ctx)).First(&p, "id = ?", id).Error
	if err != nil {
		return nil, translate(err, "product")
	}
	return &p, nil
}

type ProductInput struct {
	Name       string  `json:"name"`
	Price      int64   `json:"price"`
	Stock      int     `json:"stock"`
	CategoryID *string `json:"categoryId"`
}

func (in *ProductInput) validate() error {
	in.Name = strings.TrimSpace(in.Name)
	switch {
	case in.Name == "":
		return invalid("name is required")
	case in.Price <= 0:
		return invalid("price must be positive")
	case in.Stock < 0:
		return invalid("stock must not be negative")
	}
	if in.CategoryID != nil && *in.CategoryID == "" {
		in.CategoryID = nil
	}
	if in.CategoryID != nil && !isUUID(*in.CategoryID) {
		return invalid("categoryId must be a uuid")
	}
	return nil
}

func (s *Store) CreateProduct(ctx context.Context, in ProductInput) (*Product, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	p := &Product{ID: uuid.NewString(), Name: in.Name, Price: in.Price, Stock: in.Stock, CategoryID: in.CategoryID}
	if err := s.DB.WithContext(ctx).Omit(clause.Associations).Create(p).Error; err != nil {
		return nil, translate(err, "product")
	}
	return s.GetProduct(ctx, p.ID)
}

// UpdateProduct replaces name, price and category. A price change never
// touches transactions already admitted; they carry their own unit price.
// Stock is ignored here: it only moves through AdjustStock and checkout.
func (s *Store) UpdateProduct(ctx context.Context, id string, in ProductInput) (*Product, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if !isUUID(id) {
		return nil, fmt.Errorf("%w: product", ErrNotFound)
	}
	res := s.DB.WithContext(ctx).Model(&Product{}).Where("id = ?", id).Updates(map[string]any{
		"name":        in.Name,
		"price":       in.Price,
		"category_id": in.CategoryID,
	})
	if err := notFoundIfNone(res, "product"); err != nil {
		return nil, err
	}
	return s.GetProduct(ctx, id)
}

// AdjustStock adds delta to stock in one conditional statement so it composes
// with concurrent checkouts. Stock never goes below zero.
func (s *Store) AdjustStock(ctx context.Context, id string, delta int) (*Product, error) {
	if !isUUID(id) {
		return nil, fmt.Errorf("%w: product", ErrNotFound)
	}
	if delta == 0 {
		return s.GetProduct(ctx, id)
	}
	res := s.DB.WithContext(ctx).Model(&Product{}).
		Where("id = ? AND stock + ? >= 0", id, delta).
		Update("stock", gorm.Expr("stock + ?", delta))
	if res.Error != nil {
		return nil, translate(res.Error, "product")
	}
	if res.RowsAffected == 0 {
		p, err := s.GetProduct(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, invalid("stock %d cannot be reduced by %d", p.Stock, -delta)
	}
	return s.GetProduct(ctx, id)
}

// DeleteProduct removes the product and its option groups. Admitted lines keep
// their captured name and price.
func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	if !isUUID(id) {
		return fmt.Errorf("%w: product", ErrNotFound)
	}
	return notFoundIfNone(s.DB.WithContext(ctx).Delete(&Product{}, "id = ?", id), "product")
}

type OptionItemInput struct {
	Name  string `json:"name"`
	Price int64  `json:"price"`
}

type OptionGroupInput struct {
	Name     string            `json:"name"`
	Required bool              `json:"required"`
	Items    []OptionItemInput `json:"items"`
}

func (s *Store) CreateOptionGroup(ctx context.Context, productID string, in OptionGroupInput) (*OptionGroup, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, invalid("name is required")
	}
	if len(in.Items) == 0 {
		return nil, invalid("at least one item is required")
	}
	if !isUUID(productID) {
		return nil, fmt.Errorf("%w: product", ErrNotFound)
	}
	g := &OptionGroup{ID: uuid.NewString(), ProductID: productID, Name: in.Name, Required: in.Required}
	for i, it := range in.Items {
		name := strings.TrimSpace(it.Name)
		if name == "" {
			return nil, invalid("items[%d]: name is required", i)
		}
		if it.Price < 0 {
			return nil, invalid("items[%d]: price must not be negative", i)
		}
		g.Items = append(g.Items, OptionItem{ID: uuid.NewString(), GroupID: g.ID, Name: name, Price: it.Price})
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&Product{}).Where("id = ?", productID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w: product", ErrNotFound)
		}
		return tx.Create(g).Error
	})
	if err != nil {
		return nil, translate(err, "option group")
	}
	return g, nil
}

func (s *Store) DeleteOptionGroup(ctx context.Context, id string) error {
	if !isUUID(id) {
		return fmt.Errorf("%w: option group", ErrNotFound)
	}
	return notFoundIfNone(s.DB.WithContext(ctx).Delete(&OptionGroup{}, "id = ?", id), "option group")
}

func isUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
