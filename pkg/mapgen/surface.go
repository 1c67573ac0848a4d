package mapgen

import "fmt"

// WithOpenField создает открытую местность вместо подземелья: стена только по
// краю, площадь нарезана на кварталы district×district, между кварталами улицы.
// Кварталы играют роль комнат для WithPlaces, улицы - роль коридоров для WithBoulders.
func (b *MapBuilder) WithOpenField(district int) *MapBuilder {
	if district < MinSize {
		b.err = fmt.Errorf("district size %d is below %d", district, MinSize)
		return b
	}
	if b.width < district+2 || b.height < district+2 {
		b.err = fmt.Errorf("map %dx%d is too small for district %d", b.width, b.height, district)
		return b
	}

	size := b.width * b.height
	b.wall = make([]bool, size)
	b.corridor = make([]bool, size)
	b.rooms = b.rooms[:0]

	for row := 0; row < b.height; row++ {
		for col := 0; col < b.width; col++ {
			i := b.index(row, col)
			if row == 0 || col == 0 || row == b.height-1 || col == b.width-1 {
				b.wall[i] = true
				continue
			}
			// Улица - граница квартала
			if row%district == 0 || col%district == 0 || row == b.height-2 || col == b.width-2 {
				b.corridor[i] = true
			}
		}
	}

	// Квартал - Rect, внутренность которого лежит между улицами
	for y := 0; y+district < b.height; y += district {
		for x := 0; x+district < b.width; x += district {
			room := Rect{X: x, Y: y, W: district, H: district}
			b.rooms = append(b.rooms, room)
			c := room.Center()
			b.corridor[b.index(c.Row, c.Col)] = true
		}
	}
	return b
}
