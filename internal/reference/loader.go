package reference

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// LoadEnumCatalog читает все *.yaml/*.yml справочники из dir.
// Отсутствующая папка: пустой каталог, а не ошибка.
func LoadEnumCatalog(dir string) (Catalog, error) {
	result := make(Catalog)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return result, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read enum dir %s", dir)
	}
	for _, entry := range entries {
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if entry.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "read %s", path)
		}
		var enumDir EnumDirectory
		if err := yaml.Unmarshal(data, &enumDir); err != nil {
			return nil, errors.Wrapf(err, "parse %s", path)
		}
		// имя справочника: из файла или из имени файла
		if enumDir.Name == "" {
			enumDir.Name = strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		}
		if _, dup := result[enumDir.Name]; dup {
			return nil, errors.Newf("duplicate enum catalog %q (file: %s)", enumDir.Name, path)
		}
		result[enumDir.Name] = enumDir
	}
	return result, nil
}

func sortItems(items []EnumItem) {
	sort.SliceStable(items, func(i, j int) bool { return items[i].Order < items[j].Order })
}
