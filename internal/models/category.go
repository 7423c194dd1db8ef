package models

// Category is one of the UN Sustainable Development Goals
type Category struct {
	ID        string `gorm:"primaryKey;type:uuid;column:id" json:"id"`
	Name      string `gorm:"type:varchar(100);not null;uniqueIndex:categories_name_ux;column:name" json:"name"`
	SDGNumber int    `gorm:"not null;uniqueIndex:categories_sdg_ux;column:sdg_number" json:"sdg_number"`
}

// TableName specifies the table name for Category
func (Category) TableName() string {
	return "categories"
}

// SDGCategories lists the seventeen goals in order
var SDGCategories = []Category{
	{SDGNumber: 1, Name: "No Poverty"},
	{SDGNumber: 2, Name: "Zero Hunger"},
	{SDGNumber: 3, Name: "Good Health and Well-Being"},
	{SDGNumber: 4, Name: "Quality Education"},
	{SDGNumber: 5, Name: "Gender Equality"},
	{SDGNumber: 6, Name: "Clean Water and Sanitation"},
	{SDGNumber: 7, Name: "Affordable and Clean Energy"},
	{SDGNumber: 8, Name: "Decent Work and Economic Growth"},
	{SDGNumber: 9, Name: "Industry, Innovation and Infrastructure"},
	{SDGNumber: 10, Name: "Reduced Inequalities"},
	{SDGNumber: 11, Name: "Sustainable Cities and Communities"},
	{SDGNumber: 12, Name: "Responsible Consumption and Production"},
	{SDGNumber: 13, Name: "Climate Action"},
	{SDGNumber: 14, Name: "Life Below Water"},
	{SDGNumber: 15, Name: "Life on Land"},
	{SDGNumber: 16, Name: "Peace, Justice and Strong Institutions"},
	{SDGNumber: 17, Name: "Partnerships for the Goals"},
}

// CategoryNames projects categories to their names
func CategoryNames(categories []Category) []string {
	names := make([]string, 0, len(categories))
	for _, c := range categories {
		if c.Name != "" {
			names = append(names, c.Name)
		}
	}
	return names
}
